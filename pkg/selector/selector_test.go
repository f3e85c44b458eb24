package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskground/taskground/pkg/config"
	"github.com/taskground/taskground/pkg/registry"
	"github.com/taskground/taskground/pkg/session"
)

func noop(*session.Session) error { return nil }

func expand(t *testing.T, build func(r *registry.Registry)) []*registry.Instance {
	t.Helper()
	r := registry.New()
	build(r)
	instances, err := registry.Expand(r.Snapshot(), "", nil)
	require.NoError(t, err)
	return instances
}

func names(instances []*registry.Instance) []string {
	out := make([]string, len(instances))
	for i, in := range instances {
		out[i] = in.Name
	}
	return out
}

func TestSelectByName(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("a", noop).Register())
		require.NoError(t, r.Session("b", noop).Register())
		require.NoError(t, r.Session("c", noop).Register())
	})

	got, err := Select(instances, &config.Options{Sessions: []string{"c", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, names(got))
}

func TestSelectDuplicatesRunTwice(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("a", noop).Register())
	})

	got, err := Select(instances, &config.Options{Sessions: []string{"a", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, names(got))
}

func TestSelectBaseNameIncludesExpansions(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("tests", noop).
			Parametrize("d", registry.Values("1", "2")...).Register())
	})

	got, err := Select(instances, &config.Options{Sessions: []string{"tests"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests(d='1')", "tests(d='2')"}, names(got))
}

func TestSelectParametricTail(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("tests", noop).
			Parametrize("d", registry.Values("1", "2")...).Register())
	})

	got, err := Select(instances, &config.Options{Sessions: []string{`tests(d="1")`}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests(d='1')"}, names(got))
}

func TestSelectUnknownNameFails(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("a", noop).Register())
	})

	_, err := Select(instances, &config.Options{Sessions: []string{"nope"}})
	require.Error(t, err)
}

func TestSelectByPython(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("tests", noop).Pythons("3.11", "3.12").Register())
	})

	got, err := Select(instances, &config.Options{Pythons: []string{"3.12"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests-3.12"}, names(got))
}

func TestSelectDefaultFallback(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("a", noop).Register())
		require.NoError(t, r.Session("release", noop).NotDefault().Register())
	})

	got, err := Select(instances, &config.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(got))
}

func TestSelectByTags(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("a", noop).Tags("ci").Register())
		require.NoError(t, r.Session("b", noop).Tags("docs").Register())
	})

	got, err := Select(instances, &config.Options{Tags: []string{"ci"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(got))
}

func TestSelectByKeywords(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("tests", noop).Tags("slow").Register())
		require.NoError(t, r.Session("lint", noop).Register())
		require.NoError(t, r.Session("docs", noop).Register())
	})

	got, err := Select(instances, &config.Options{Keywords: "tests or docs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests", "docs"}, names(got))

	got, err = Select(instances, &config.Options{Keywords: "not slow and not lint"})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names(got))
}

func TestSelectGlob(t *testing.T) {
	instances := expand(t, func(r *registry.Registry) {
		require.NoError(t, r.Session("test-unit", noop).Register())
		require.NoError(t, r.Session("test-e2e", noop).Register())
		require.NoError(t, r.Session("lint", noop).Register())
	})

	got, err := Select(instances, &config.Options{Sessions: []string{"test-*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"test-unit", "test-e2e"}, names(got))
}

func TestKeywordParserErrors(t *testing.T) {
	for _, expr := range []string{"", "and", "a or", "(a", "a )"} {
		_, err := ParseKeywords(expr)
		assert.Error(t, err, expr)
	}
}
