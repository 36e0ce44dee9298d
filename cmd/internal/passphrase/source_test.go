package passphrase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("ECDP_TEST_PASS", "hunter2")
	s := NewSource("ECDP_TEST_PASS")
	s.isTTY = func() bool { t.Fatal("terminal must not be consulted"); return false }

	value, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, "hunter2", value)
}

func TestSourceWithoutTerminalUsesEmptyPassphrase(t *testing.T) {
	s := &Source{envVar: "ECDP_TEST_PASS_UNSET", isTTY: func() bool { return false }}
	value, err := s.Get()
	require.NoError(t, err)
	require.Empty(t, value)
}

func TestSourcePromptsOnce(t *testing.T) {
	calls := 0
	s := &Source{
		isTTY: func() bool { return true },
		readPass: func() ([]byte, error) {
			calls++
			return []byte("secret"), nil
		},
	}
	for i := 0; i < 2; i++ {
		value, err := s.Get()
		require.NoError(t, err)
		require.Equal(t, "secret", value)
	}
	require.Equal(t, 1, calls)
}

func TestSourceReportsReadFailure(t *testing.T) {
	s := &Source{
		isTTY:    func() bool { return true },
		readPass: func() ([]byte, error) { return nil, errors.New("tty gone") },
	}
	_, err := s.Get()
	require.ErrorContains(t, err, "tty gone")
}
