// Package version carries build metadata. BuildDate and GoVersion are set
// through -ldflags "-X github.com/keshon/tunebooth/internal/version.BuildDate=...".
package version

import "runtime"

const (
	AppName        = "Tunebooth"
	AppDescription = "Per-guild voice channel music player for Discord"
)

var (
	BuildDate string
	GoVersion = runtime.Version()
)
