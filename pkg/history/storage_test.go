package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskground/taskground/pkg/api"
)

func sampleReport(name string) *api.Report {
	return &api.Report{
		RunID:   name,
		Started: time.Now(),
		Sessions: []api.Result{
			{Name: "t", Status: api.StatusSuccess},
		},
		Result: api.StatusSuccess,
	}
}

func TestRecordAndGet(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Record(sampleReport("run-1"))
	require.NoError(t, err)

	rec, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "run-1", rec.Report.RunID)
	require.Len(t, rec.Report.Sessions, 1)
	assert.Equal(t, api.StatusSuccess, rec.Report.Sessions[0].Status)
}

func TestGetUnknown(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("not-an-xid")
	require.Error(t, err)
}

func TestRecentNewestFirst(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id, err := s.Record(sampleReport(name))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	recent, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)
}

func TestBetweenWindow(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Record(sampleReport("x"))
	require.NoError(t, err)

	got, err := s.Between(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Between(time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}
