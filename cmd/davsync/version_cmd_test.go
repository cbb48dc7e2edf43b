package main

import (
	"strings"
	"testing"

	"github.com/openmined/davsync/internal/version"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, _, code := env.run(t, "version")
	require.Equal(t, 0, code)
	require.Equal(t, version.Detailed(), strings.TrimSpace(out))
	require.NoDirExists(t, env.dataDir, "version does not create the data dir")
}
