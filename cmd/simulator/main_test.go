package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandHasServerSubcommand(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"server", "run"})
	require.NoError(t, err)
	require.Equal(t, "run", cmd.Name())
}

func TestServerRunRejectsInvertedConsistencyBounds(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"server", "run", "--token", "t", "--consistency-bound-min", "100", "--consistency-bound-max", "50", "--port", "0"})
	err := root.Execute()
	require.Error(t, err)
}

func TestServerRunRequiresToken(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"server", "run", "--port", "0"})
	err := root.Execute()
	require.Error(t, err)
}
