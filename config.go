package testcoord

import "github.com/giantswarm/testcoord/internal/core"

// coordinatorConfig holds configuration for a Coordinator. It embeds
// core.CoordinatorConfig so internal types stay out of the public API
// without duplicating every field.
type coordinatorConfig struct {
	core.CoordinatorConfig
}

// toCoreConfig returns the embedded core.CoordinatorConfig.
func (c coordinatorConfig) toCoreConfig() core.CoordinatorConfig {
	return c.CoordinatorConfig
}
