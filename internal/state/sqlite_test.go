package state

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/alchemy/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"runs", "poll_values", "top_terms", "snapshots"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}

	// Running again is a no-op.
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := t.TempDir() + "/state.db"
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.Migrate())
	run, err := store.CreateRun("file", 0, "none", "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "file", got.Name)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.CreateRun("baseline", 2, "00ff", "name: baseline\n")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", got.Name)
	assert.Equal(t, 2, got.Replicate)
	assert.Equal(t, "00ff", got.Seed)
	assert.Equal(t, "name: baseline\n", got.Config)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	require.NoError(t, store.CompleteRun(run.ID, RunStatusFailed, "boom"))
	got, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.False(t, got.CompletedAt.Before(got.StartedAt))

	_, err = store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun("missing", RunStatusCompleted, ""), "run not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)

	var ids []string
	for i := range 3 {
		run, err := store.CreateRun("exp", i, "none", "")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID, "most recent first")

	runs, err = store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteStore_Polls(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun("polls", 0, "none", "")
	require.NoError(t, err)

	require.NoError(t, store.RecordPoll(&Poll{RunID: run.ID, SeriesNumber: 0, Values: map[string]float64{"len": 10, "entropy": 3.3}}))
	require.NoError(t, store.RecordPoll(&Poll{RunID: run.ID, SeriesNumber: 100, Values: map[string]float64{"len": 10, "entropy": 2.5}}))

	polls, err := store.GetPolls(run.ID)
	require.NoError(t, err)
	require.Len(t, polls, 2)
	assert.Equal(t, 0, polls[0].SeriesNumber)
	assert.Equal(t, 100, polls[1].SeriesNumber)
	assert.InDelta(t, 2.5, polls[1].Values["entropy"], 1e-12)
	assert.Equal(t, 10.0, polls[0].Values["len"])

	err = store.RecordPoll(&Poll{RunID: "no-such-run", Values: map[string]float64{"len": 1}})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestSQLiteStore_TopTermsAndSnapshots(t *testing.T) {
	store := setupTestStore(t)
	run, err := store.CreateRun("snap", 0, "none", "")
	require.NoError(t, err)

	top := []TopTerm{{Rank: 1, Expression: "λa.a", Count: 7}, {Rank: 2, Expression: "λa.λb.a", Count: 3}}
	require.NoError(t, store.RecordTopTerms(run.ID, 50, top))
	gotTop, err := store.GetTopTerms(run.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, top, gotTop)

	pop := []string{"λa.a", "λa.λb.a", "λa.a"}
	require.NoError(t, store.RecordSnapshot(run.ID, 0, pop))
	require.NoError(t, store.RecordSnapshot(run.ID, 50, pop[:1]))

	got, err := store.GetSnapshot(run.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, pop, got)

	series, err := store.ListSnapshotSeries(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 50}, series)

	missing, err := store.GetSnapshot(run.ID, 999)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	checks := map[string]error{
		"migrate":   store.Migrate(),
		"complete":  store.CompleteRun("x", RunStatusCompleted, ""),
		"poll":      store.RecordPoll(&Poll{}),
		"snapshot":  store.RecordSnapshot("x", 0, nil),
		"top terms": store.RecordTopTerms("x", 0, nil),
	}
	for name, err := range checks {
		assert.EqualError(t, err, "database not opened", name)
	}

	_, err := store.CreateRun("x", 0, "", "")
	assert.EqualError(t, err, "database not opened")
	_, err = store.ListRuns(1)
	assert.EqualError(t, err, "database not opened")
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_CreateRunError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO runs").WillReturnError(assert.AnError)

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	_, err = store.CreateRun("exp", 0, "none", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed to create run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_RecordSnapshotCommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	commitErr := errors.New("disk I/O error")
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO snapshots")
	prep.ExpectExec().WithArgs("run-1", 10, "λa.a").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(commitErr)

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	err = store.RecordSnapshot("run-1", 10, []string{"λa.a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, commitErr)
	assert.Contains(t, err.Error(), "commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_RecordPollExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT OR REPLACE INTO poll_values")
	prep.ExpectExec().WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := &SQLiteStore{db: db, logger: testutil.NewTestLogger(t)}
	err = store.RecordPoll(&Poll{RunID: "run-1", Values: map[string]float64{"len": 3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert poll value len")
	assert.NoError(t, mock.ExpectationsWereMet())
}
