package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultPath, Config{}.path())
	require.Equal(t, "/tmp/other.sqlite", Config{Path: "/tmp/other.sqlite"}.path())
}
