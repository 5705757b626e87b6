package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avatarctic/funwheel-offline/internal/core/domain/lifecycle"
)

func TestHappyPath(t *testing.T) {
	s, err := lifecycle.Begin(lifecycle.StateUninstalled, lifecycle.EventInstall)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StateInstalling, s)
	s = lifecycle.Complete(s, lifecycle.EventInstall, true)
	require.Equal(t, lifecycle.StateInstalled, s)
	require.False(t, s.Serving())

	s, err = lifecycle.Begin(s, lifecycle.EventActivate)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StateActivating, s)
	s = lifecycle.Complete(s, lifecycle.EventActivate, true)
	require.Equal(t, lifecycle.StateActive, s)
	require.True(t, s.Serving())

	s, err = lifecycle.Begin(s, lifecycle.EventFetch)
	require.NoError(t, err)
	require.Equal(t, lifecycle.StateActive, lifecycle.Complete(s, lifecycle.EventFetch, false))
}

func TestFailuresAreTerminal(t *testing.T) {
	require.Equal(t, lifecycle.StateRedundant, lifecycle.Complete(lifecycle.StateInstalling, lifecycle.EventInstall, false))
	require.Equal(t, lifecycle.StateRedundant, lifecycle.Complete(lifecycle.StateActivating, lifecycle.EventActivate, false))

	for _, ev := range []lifecycle.EventKind{lifecycle.EventInstall, lifecycle.EventActivate, lifecycle.EventFetch} {
		_, err := lifecycle.Begin(lifecycle.StateRedundant, ev)
		require.Error(t, err, ev)
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct {
		from lifecycle.State
		ev   lifecycle.EventKind
	}{
		{lifecycle.StateUninstalled, lifecycle.EventActivate},
		{lifecycle.StateUninstalled, lifecycle.EventFetch},
		{lifecycle.StateInstalled, lifecycle.EventInstall},
		{lifecycle.StateInstalled, lifecycle.EventFetch},
		{lifecycle.StateActive, lifecycle.EventInstall},
		{lifecycle.StateActive, lifecycle.EventActivate},
	}
	for _, tc := range cases {
		s, err := lifecycle.Begin(tc.from, tc.ev)
		require.Error(t, err)
		require.Equal(t, tc.from, s)
	}
}
