package jsonfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	require.NoError(t, Write(path, doc{Name: "a & b", Items: []string{"x"}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"a & b"`, "HTML characters are not escaped")

	var got doc
	require.NoError(t, Read(path, &got))
	assert.Equal(t, doc{Name: "a & b", Items: []string{"x"}}, got)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	require.NoError(t, Write(path, doc{Name: "one"}))
	require.NoError(t, Write(path, doc{Name: "two"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestWrite_EncodeErrorKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, Write(path, doc{Name: "kept"}))

	err := Write(path, map[string]any{"bad": make(chan int)})
	require.Error(t, err)

	var got doc
	require.NoError(t, Read(path, &got))
	assert.Equal(t, "kept", got.Name)
}

func TestRead_Errors(t *testing.T) {
	dir := t.TempDir()

	var got doc
	err := Read(filepath.Join(dir, "missing.json"), &got)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	err = Read(bad, &got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode bad.json")
}
