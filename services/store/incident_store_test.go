package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nhashaamn/resq/models"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func incident(detected int64, action models.Action, by models.Resolver) models.Incident {
	return models.Incident{
		ID:          uuid.NewString(),
		DetectedNs:  detected,
		Magnitude:   25,
		CountdownMs: 10000,
		Action:      action,
		ResolvedBy:  by,
		ResolvedNs:  detected + 1,
	}
}

func TestRecordAndGetIncident(t *testing.T) {
	s := tempStore(t)
	want := incident(100, models.ActionSuppress, models.ResolvedByConfirm)

	require.NoError(t, s.RecordIncident(want))

	got, err := s.GetIncident(want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetIncidentNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.GetIncident("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateIncidentRejected(t *testing.T) {
	s := tempStore(t)
	inc := incident(1, models.ActionEscalate, models.ResolvedByTimeout)
	require.NoError(t, s.RecordIncident(inc))
	require.Error(t, s.RecordIncident(inc))
}

func TestListIncidentsNewestFirst(t *testing.T) {
	s := tempStore(t)
	for _, ts := range []int64{300, 100, 200} {
		require.NoError(t, s.RecordIncident(incident(ts, models.ActionEscalate, models.ResolvedByTimeout)))
	}

	list, err := s.ListIncidents(2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(300), list[0].DetectedNs)
	assert.Equal(t, int64(200), list[1].DetectedNs)

	empty := tempStore(t)
	list, err = empty.ListIncidents(0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestShakeCounts(t *testing.T) {
	s := tempStore(t)
	ev := models.ShakeEvent{ID: uuid.NewString(), TimestampNs: 1, Magnitude: 30}

	require.NoError(t, s.RecordShake(ev, false))
	require.NoError(t, s.RecordShake(ev, false), "re-recording the same event is ignored")
	require.NoError(t, s.RecordShake(models.ShakeEvent{ID: uuid.NewString(), TimestampNs: 2, Magnitude: 40}, true))

	total, suppressed, err := s.ShakeCounts()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, suppressed)
}
