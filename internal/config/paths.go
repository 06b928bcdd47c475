// Package config resolves filesystem locations for simulator runtime
// state: only $HOME is read, to build the default --directory value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDirName is the directory created under $HOME when --directory is
// not supplied.
const defaultDirName = ".exoware_simulator"

// DefaultDirectory returns $HOME/.exoware_simulator. It is the only
// environment-derived default the simulator consults.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}
