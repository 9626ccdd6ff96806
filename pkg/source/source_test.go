package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	src := NewFilesystem()

	content, err := src.Read("../../go.mod")
	require.NoError(t, err)
	assert.Contains(t, string(content), "module github.com/havenly/codematch")

	_, err = src.Read("nonexistent.txt")
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	src := NewMemory(map[string][]byte{
		"unit1.pas": []byte("program Foo; begin end."),
	})

	content, err := src.Read("unit1.pas")
	require.NoError(t, err)
	assert.Equal(t, "program Foo; begin end.", string(content))

	_, err = src.Read("missing.pas")
	assert.Error(t, err)
}
