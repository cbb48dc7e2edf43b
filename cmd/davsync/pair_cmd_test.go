package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, p, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestPairCommands(t *testing.T) {
	env := newCLIEnv(t)
	a := writeFile(t, filepath.Join(env.home, "files", "a.txt"), "a")
	b := writeFile(t, filepath.Join(env.home, "files", "b.txt"), "b")

	out, errOut, code := env.run(t, "pair", "add", a, "docs/a.txt")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "added "+a+" <=> /docs/a.txt")

	_, errOut, code = env.run(t, "pair", "add", b, "/docs/a.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "remote path already in use")

	_, errOut, code = env.run(t, "pair", "add", filepath.Join(env.home, "nope"), "/nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "local path not found")

	_, errOut, code = env.run(t, "pair", "edit", a, b, "/docs/b.txt")
	require.Equal(t, 0, code, errOut)

	out, _, code = env.run(t, "pair", "ls")
	require.Equal(t, 0, code)
	assert.Contains(t, out, b+" <=> /docs/b.txt")
	assert.NotContains(t, out, a)

	_, errOut, code = env.run(t, "pair", "rm", b)
	require.Equal(t, 0, code, errOut)

	out, _, _ = env.run(t, "pair", "ls")
	assert.Contains(t, out, "no pairs")
}

func TestPairExportImport(t *testing.T) {
	src := newCLIEnv(t)
	a := writeFile(t, filepath.Join(src.home, "a.txt"), "a")
	_, errOut, code := src.run(t, "pair", "add", a, "/a.txt")
	require.Equal(t, 0, code, errOut)

	for _, name := range []string{"pairs.yaml", "pairs.json"} {
		t.Run(name, func(t *testing.T) {
			export := filepath.Join(src.home, name)
			_, errOut, code := src.run(t, "pair", "export", export)
			require.Equal(t, 0, code, errOut)

			dst := newCLIEnv(t)
			out, errOut, code := dst.run(t, "pair", "import", export)
			require.Equal(t, 0, code, errOut)
			assert.Contains(t, out, "imported 1 of 1 pairs")

			out, _, _ = dst.run(t, "pair", "ls", "--json")
			assert.Contains(t, out, `"local_path": "`+a+`"`)
		})
	}

	out, _, code := src.run(t, "pair", "export")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "remote_path: /a.txt")
}
