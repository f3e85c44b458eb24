package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskground/taskground/pkg/api"
	"github.com/taskground/taskground/pkg/registry"
	"github.com/taskground/taskground/pkg/session"
)

func sampleReport() *api.Report {
	r := &api.Report{
		RunID:   "run-1",
		Started: time.Now(),
		Sessions: []api.Result{
			{Name: "t", Status: api.StatusSuccess, Duration: 1200 * time.Millisecond},
			{Name: "lint", Status: api.StatusFailed, Reason: "exit 1"},
			{Name: "docs", Status: api.StatusSkipped, Reason: "interpreter-missing"},
		},
	}
	r.Result = r.Overall()
	return r
}

func TestWriteJSONShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteJSON(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Sessions []struct {
			Name      string  `json:"name"`
			Status    string  `json:"status"`
			Reason    string  `json:"reason"`
			DurationS float64 `json:"duration_s"`
		} `json:"sessions"`
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Sessions, 3)
	assert.Equal(t, "t", decoded.Sessions[0].Name)
	assert.Equal(t, "success", decoded.Sessions[0].Status)
	assert.InDelta(t, 1.2, decoded.Sessions[0].DurationS, 0.001)
	assert.Equal(t, "failed", decoded.Sessions[1].Status)
	assert.Equal(t, "exit 1", decoded.Sessions[1].Reason)
	assert.Equal(t, "failed", decoded.Result)
}

func TestOverall(t *testing.T) {
	r := &api.Report{Sessions: []api.Result{
		{Status: api.StatusSuccess},
		{Status: api.StatusSkipped},
	}}
	assert.Equal(t, api.StatusSuccess, r.Overall())

	r.Sessions = append(r.Sessions, api.Result{Status: api.StatusAborted})
	assert.Equal(t, api.StatusFailed, r.Overall())
}

func TestPrintSummaryCounts(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).PrintSummary(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "Ran 3 session(s)")
	assert.Contains(t, out, "* t: success")
	assert.Contains(t, out, "* lint: failed (exit 1)")
	assert.Contains(t, out, "1 successful, 1 failed, 1 skipped, 0 aborted")
}

func TestListEntries(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Session("tests", func(*session.Session) error { return nil }).
		Doc("Run the test suite.\nLong tail.").
		Parametrize("d", registry.Param([]string{"1"}, "old"), registry.Param([]string{"2"}, "new")).
		Register())

	instances, err := registry.Expand(r.Snapshot(), "", nil)
	require.NoError(t, err)

	entries := ListEntries(instances)
	require.Len(t, entries, 2)
	assert.Equal(t, "tests(old)", entries[0].Session)
	assert.Equal(t, "tests", entries[0].Name)
	assert.Equal(t, "Run the test suite.", entries[0].Description)
	assert.Equal(t, map[string]string{"d": "1"}, entries[0].CallSpec)
	assert.Equal(t, map[string]string{"d": "2"}, entries[1].CallSpec)
}

func TestPrintListJSONRoundTrip(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Session("a", func(*session.Session) error { return nil }).Register())
	instances, err := registry.Expand(r.Snapshot(), "", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, New(&buf, false).PrintList(instances, true))

	var entries []ListEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Session)
}
