package exec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostEnvStripsDenyList(t *testing.T) {
	environ := []string{
		"PATH=/usr/bin",
		"HOME=/home/u",
		"VIRTUAL_ENV=/some/venv",
		"PYTHONPATH=/weird",
		"CONDA_PREFIX=/conda",
		"PYTHONHOME=/py",
	}
	e := NewHostEnv(environ)

	assert.Equal(t, []string{
		"VIRTUAL_ENV",
		"CONDA_PREFIX",
		"CONDA_DEFAULT_ENV",
		"PYTHONHOME",
		"PYTHONPATH",
		"PYTHONEXECUTABLE",
		"PYTHONSTARTUP",
		"__PYVENV_LAUNCHER__",
		"PIP_REQUIRE_VIRTUALENV",
	}, DeniedHostVars)
	for _, denied := range DeniedHostVars {
		_, ok := e.Get(denied)
		assert.False(t, ok, denied)
	}
	v, ok := e.Get("HOME")
	assert.True(t, ok)
	assert.Equal(t, "/home/u", v)
}

func TestApplyPathPrepends(t *testing.T) {
	e := NewHostEnv([]string{"PATH=/usr/bin:/bin"})
	e.Apply(map[string]string{"PATH": "/env/bin"})

	p, _ := e.Get("PATH")
	assert.True(t, strings.HasPrefix(p, "/env/bin"))
	assert.Contains(t, p, "/usr/bin")
	assert.Equal(t, "/env/bin", e.Paths()[0])
}

func TestApplyUnsetMarker(t *testing.T) {
	e := NewHostEnv([]string{"FOO=bar"})
	e.Apply(map[string]string{"FOO": Unset, "BAZ": "1"})

	_, ok := e.Get("FOO")
	assert.False(t, ok)
	v, _ := e.Get("BAZ")
	assert.Equal(t, "1", v)
}

func TestCloneIsIndependent(t *testing.T) {
	e := NewHostEnv([]string{"A=1"})
	c := e.Clone()
	c.Set("A", "2")

	v, _ := e.Get("A")
	assert.Equal(t, "1", v)
}

func TestEnvironStableOrder(t *testing.T) {
	e := NewHostEnv([]string{"B=2", "A=1"})
	assert.Equal(t, []string{"A=1", "B=2"}, e.Environ())
}
