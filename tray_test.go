package traykit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncTrayBeforeSetUp(t *testing.T) {
	require.ErrorIs(t, SyncTray(NewTrayItem()), ErrNotAttached)
}

func TestTearDownTrayBeforeSetUp(t *testing.T) {
	require.ErrorIs(t, TearDownTray(), ErrNotAttached)
}
