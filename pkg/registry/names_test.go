package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameRoundTrip(t *testing.T) {
	for _, name := range []string{
		"tests",
		"tests-3.12",
		"tests(d='1')",
		"tests-3.12(django='2.0', flask='1.1')",
		"tests(old)",
	} {
		base, spec, ok := ParseName(name)
		require.True(t, ok, name)
		rendered := base + spec.Render()
		assert.True(t, NamesEqual(name, rendered), "%s != %s", name, rendered)
	}
}

func TestNamesEqualQuoting(t *testing.T) {
	assert.True(t, NamesEqual(`tests(x='1')`, `tests(x="1")`))
	assert.True(t, NamesEqual(`tests(x='1', y='2')`, `tests(x="1", y="2")`))
	assert.False(t, NamesEqual(`tests(x='1')`, `tests(x='2')`))
	assert.False(t, NamesEqual(`tests(x='1')`, `other(x='1')`))
	assert.False(t, NamesEqual(`tests(x='1')`, `tests(y='1')`))
}

func TestNamesEqualIDs(t *testing.T) {
	assert.True(t, NamesEqual("tests(old)", "tests(old)"))
	assert.False(t, NamesEqual("tests(old)", "tests(new)"))
	assert.False(t, NamesEqual("tests(old)", "tests"))
}
