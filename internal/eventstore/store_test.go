package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, buildID string, gen uint64, kind string, payload any) Record {
	t.Helper()
	r, err := NewRecord(buildID, gen, kind, payload)
	require.NoError(t, err)
	return r
}

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_ForBuild(t *testing.T) {
	store := openMemory(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, record(t, "b1", 1, TypeBuildStarted, BuildStarted{Generation: 1, Serve: true})))
	require.NoError(t, store.Append(ctx, record(t, "b2", 2, TypeBuildStarted, BuildStarted{Generation: 2})))
	require.NoError(t, store.Append(ctx, record(t, "b1", 1, TypeStepCompleted, StepCompleted{Step: "execute", DurationMS: 3})))

	got, err := store.ForBuild(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TypeBuildStarted, got[0].Kind)
	assert.Equal(t, TypeStepCompleted, got[1].Kind)
	assert.Equal(t, uint64(1), got[0].Generation)
	assert.Less(t, got[0].Seq, got[1].Seq)

	var started BuildStarted
	require.NoError(t, got[0].Decode(&started))
	assert.True(t, started.Serve)
}

func TestSQLiteStore_BetweenAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	ctx := t.Context()

	old := record(t, "old", 1, TypeBuildStarted, BuildStarted{})
	old.At = time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Append(ctx, old))
	require.NoError(t, store.Append(ctx, Record{BuildID: "new", Kind: TypeBuildStarted}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	got, err := store.Between(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].BuildID)
	assert.JSONEq(t, "null", string(got[0].Data))
}

func TestRecord_DecodeError(t *testing.T) {
	r := Record{BuildID: "x", Kind: TypeBuildFailed, Data: []byte("{")}
	var p BuildFailed
	require.Error(t, r.Decode(&p))
}

func TestHistory_Summaries(t *testing.T) {
	store := openMemory(t)
	ctx := t.Context()

	base := time.Now().Add(-time.Minute)
	at := func(r Record, d time.Duration) Record {
		r.At = base.Add(d)
		return r
	}
	for _, r := range []Record{
		at(record(t, "a", 1, TypeBuildStarted, BuildStarted{Generation: 1, Serve: true, Clean: true}), 0),
		at(record(t, "a", 1, TypeStepCompleted, StepCompleted{Step: "make_pipeline"}), time.Millisecond),
		at(record(t, "a", 1, TypeBuildCompleted, BuildCompleted{DurationMS: 12}), 2*time.Millisecond),
		at(record(t, "b", 2, TypeBuildStarted, BuildStarted{Generation: 2}), time.Second),
		at(record(t, "b", 2, TypeBuildSuperseded, BuildSuperseded{Step: "layouts", Current: 3}), 2*time.Second),
		at(record(t, "c", 3, TypeBuildStarted, BuildStarted{Generation: 3}), 3*time.Second),
		at(record(t, "c", 3, TypeBuildFailed, BuildFailed{Step: "layoutsBefore", Category: "hook", Error: "boom"}), 4*time.Second),
	} {
		require.NoError(t, store.Append(ctx, r))
	}

	got, err := History(ctx, store, base.Add(-time.Second), 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].BuildID)
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.Equal(t, "layoutsBefore", got[0].ErrorStep)
	assert.Equal(t, "boom", got[0].ErrorMessage)
	assert.Equal(t, StatusSuperseded, got[1].Status)
	assert.Equal(t, uint64(2), got[1].Generation)
	assert.Equal(t, StatusSucceeded, got[2].Status)
	assert.Equal(t, 1, got[2].Steps)
	assert.Equal(t, 12*time.Millisecond, got[2].Duration)
	assert.True(t, got[2].Serve)

	limited, err := History(ctx, store, base.Add(-time.Second), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSummarize_RunningBuild(t *testing.T) {
	got := Summarize([]Record{record(t, "r", 7, TypeBuildStarted, BuildStarted{Generation: 7})}, 0)
	require.Len(t, got, 1)
	assert.Equal(t, StatusRunning, got[0].Status)
	assert.Equal(t, uint64(7), got[0].Generation)
}
