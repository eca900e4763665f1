// Package version provides build and version information for MineBot.
package version

// Version is the current release version of MineBot.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/darianrosebrook/minebot/internal/version.Version=x.y.z"
var Version = "1.0.0"
