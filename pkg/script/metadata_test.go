package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.py")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseMetadataBlock(t *testing.T) {
	path := writeScript(t, `#!/usr/bin/env python
# /// script
# requires-python = ">=3.11"
# dependencies = [
#   "requests<3",
#   "rich",
# ]
# ///

import requests
`)

	md, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">=3.11", md.RequiresPython)
	assert.Equal(t, []string{"requests<3", "rich"}, md.Dependencies)
}

func TestParseNoBlock(t *testing.T) {
	path := writeScript(t, "print('hello')\n")

	md, err := ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, md.RequiresPython)
	assert.Empty(t, md.Dependencies)
}

func TestParseUnterminatedBlock(t *testing.T) {
	path := writeScript(t, "# /// script\n# dependencies = []\n")

	_, err := ParseFile(path)
	require.Error(t, err)
}

func TestParseNonCommentLineInsideBlock(t *testing.T) {
	path := writeScript(t, "# /// script\nimport os\n# ///\n")

	_, err := ParseFile(path)
	require.Error(t, err)
}

func TestParseEmptyBlock(t *testing.T) {
	path := writeScript(t, "# /// script\n# ///\nprint('x')\n")

	md, err := ParseFile(path)
	require.NoError(t, err)
	assert.Empty(t, md.Dependencies)
}
