// Command simulator runs the exoware local/simulator server: a durable
// KV store with simulated eventual consistency and an ADB overlay, plus an
// in-memory publish/subscribe fabric, all behind a single bearer-token
// gate.
package main

import (
	"fmt"
	"os"

	"github.com/exowarexyz/simulator/internal/buildinfo"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "simulator",
		Short:   "Local simulator for the exoware geo-replicated KV/ADB/stream service",
		Version: buildinfo.Version,
	}
	root.AddCommand(newServerCommand())
	return root
}
