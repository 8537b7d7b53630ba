package testcoord

import (
	"os"
	"strconv"
	"strings"

	"github.com/giantswarm/testcoord/internal/core"
)

// AgentIndexOrDefault returns the group index from AgentIndexEnv. An unset,
// malformed, or negative value yields 0 so a developer machine behaves like
// the first build agent.
func AgentIndexOrDefault() int {
	return agentIndex(os.Getenv(AgentIndexEnv))
}

func agentIndex(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		core.Logger().Warn("ignoring invalid agent index", "env", AgentIndexEnv, "value", raw)
		return 0
	}
	return n
}
