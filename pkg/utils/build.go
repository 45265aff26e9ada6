// Build information wired in through -ldflags at release time, plus the
// process start time. Test binaries set TestMode to flip invariants into
// hard panics.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

var (
	TestMode   string // Should be true when running tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = "unknown"
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false", "error", err)
		}
	}
}
