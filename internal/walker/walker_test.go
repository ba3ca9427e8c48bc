package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectFiltersByExtensionAndIgnores(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/App.java", "class App {}")
	write(t, root, "src/util/Strings.java", "class Strings {}")
	write(t, root, "readme.md", "# readme")
	write(t, root, "build/Gen.java", "class Gen {}")
	write(t, root, "src/Empty.java", "")

	paths, err := Collect(root, map[string]bool{"java": true})
	require.NoError(t, err)

	rels := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rels[i] = filepath.ToSlash(rel)
	}
	assert.ElementsMatch(t, []string{"src/App.java", "src/util/Strings.java"}, rels)
}

func TestCollectHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".quarryignore", "# generated code\ngen\n")
	write(t, root, "gen/Gen.java", "class Gen {}")
	write(t, root, "Main.java", "class Main {}")

	paths, err := Collect(root, map[string]bool{"java": true})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "Main.java", filepath.Base(paths[0]))
}
