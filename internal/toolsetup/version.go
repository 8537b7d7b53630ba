package toolsetup

import (
	"fmt"
	"runtime"
	"strings"

	"k8s.io/apimachinery/pkg/util/version"
)

// Browser identifies a browser whose driver DriverSetup can install.
type Browser string

const (
	Chrome           Browser = "Chrome"
	Edge             Browser = "Edge"
	Firefox          Browser = "Firefox"
	InternetExplorer Browser = "InternetExplorer"
)

// Version resolution strategies understood by installers in place of a
// concrete version.
const (
	StrategyLatest          = "Latest"
	StrategyMatchingBrowser = "MatchingBrowser"
)

// edgeDriverVersion pins the Edge driver; the latest reported Edge version
// is often a canary without a released driver.
const edgeDriverVersion = "83.0.478.37"

// versionCommand returns the command that prints the installed browser's
// version.
func versionCommand(b Browser) (name string, args []string, err error) {
	const versionArg = "--version"

	switch b {
	case Chrome:
		name = "chrome"
		if runtime.GOOS == "linux" {
			name = "chromium"
		}
		args = []string{versionArg}
	case Firefox:
		name, args = "firefox", []string{versionArg}
	case Edge:
		name, args = "powershell", []string{"(Get-AppxPackage Microsoft.MicrosoftEdge).Version"}
	case InternetExplorer:
		name, args = "reg", []string{"query", `HKEY_LOCAL_MACHINE\Software\Microsoft\Internet Explorer`, "/v", "svcVersion"}
	default:
		return "", nil, fmt.Errorf("unknown browser %q", b)
	}
	return name + ExecutableExtension(), args, nil
}

// FallbackVersion is used when the installed browser version cannot be
// determined. Only Chrome drivers can be matched to the browser by the
// installer itself.
func FallbackVersion(b Browser) string {
	if b == Chrome {
		return StrategyMatchingBrowser
	}
	return StrategyLatest
}

// parseVersion reads a version of two to four dotted numbers.
func parseVersion(word string) (*version.Version, bool) {
	v, err := version.ParseGeneric(word)
	if err != nil || v.String() != word || len(v.Components()) > 4 {
		return nil, false
	}
	return v, true
}

// versionFromOutput picks the driver version out of the output of the
// browser's version command. Chrome versions are rewritten to the latest
// driver release of the same build, since a driver for the exact installed
// revision often does not exist.
func versionFromOutput(b Browser, output string) string {
	for _, word := range strings.Fields(output) {
		v, ok := parseVersion(word)
		if !ok {
			continue
		}
		if b == Chrome && len(v.Components()) >= 3 {
			return fmt.Sprintf("LATEST_RELEASE_%d.%d.%d", v.Major(), v.Minor(), v.Patch())
		}
		return word
	}
	return FallbackVersion(b)
}
