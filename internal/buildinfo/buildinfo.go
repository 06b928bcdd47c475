// Package buildinfo holds the version string reported by `simulator
// --version`, set at build time via -ldflags (e.g.
// -X github.com/exowarexyz/simulator/internal/buildinfo.Version=1.2.3).
package buildinfo

// Version is the simulator's release version. It defaults to "dev" for
// locally built binaries.
var Version = "dev"
