package contracts

import (
	"fmt"
	"runtime"
)

// Version is the semantic version of this module.
const Version = "0.1.0-alpha.1"

// APIVersion tags HTTP responses and WebSocket envelopes so clients can
// detect incompatible servers.
const APIVersion = "v1-alpha"

// DataFormatVersion tracks the persisted snapshot schema. Bump it when a
// migration of the last-known store is required.
const DataFormatVersion = "v1"

// Set at build time via -ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetFullVersionString returns the one-line banner printed by -version.
func GetFullVersionString() string {
	return fmt.Sprintf("ETF Pulse v%s (built: %s, commit: %s, go: %s, %s/%s)",
		Version, BuildTime, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
