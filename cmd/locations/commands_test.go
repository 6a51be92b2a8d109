package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadQueryGroups(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "queries.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"short": ["Н", "Но"], "long": ["Новосибирск"]}`), 0o644))
	groups, err := readQueryGroups(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Н", "Но"}, groups["short"])
	assert.Len(t, groups, 2)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = readQueryGroups(empty)
	assert.Error(t, err)

	_, err = readQueryGroups(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"upload", "delete", "touch", "test", "token"}, names)
}
