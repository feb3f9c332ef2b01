package experiment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/alchemy/internal/analysis"
	"github.com/leapstack-labs/alchemy/internal/config"
	"github.com/leapstack-labs/alchemy/internal/metrics"
	"github.com/leapstack-labs/alchemy/internal/state"
	"github.com/leapstack-labs/alchemy/internal/testutil"
)

func openStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoad(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "skk", spec.Name)
	assert.Equal(t, 20, spec.Reactor.Capacity)
	assert.True(t, spec.Reactor.Seed.IsSet())
	assert.Equal(t, 2, spec.Replicates)
	assert.Equal(t, 3, spec.TopK)
	assert.True(t, spec.Measures(MeasureState))

	terms, err := InitialTerms(spec)
	require.NoError(t, err)
	assert.Len(t, terms, 4, "blank and malformed lines are skipped")
}

func TestLoad_GeneratorDefaults(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "generated.yaml"))
	require.NoError(t, err)

	require.NotNil(t, spec.Initial.BTree)
	assert.Equal(t, 8, spec.Initial.BTree.Size)
	assert.Equal(t, config.StandardizationPostfix, spec.Initial.BTree.Standardization)
	assert.Equal(t, config.DefaultMaxFreeVars, spec.Initial.BTree.MaxFreeVars)
	assert.Equal(t, config.DefaultStepLimit, spec.Reactor.StepLimit)
	assert.Equal(t, []Measurement{MeasureLen, MeasureCollisions, MeasureEntropy}, spec.Measurements)

	terms, err := InitialTerms(spec)
	require.NoError(t, err)
	assert.Len(t, terms, 30)
	for _, term := range terms {
		assert.False(t, term.HasFreeVars())
	}
}

func TestParse_GeneratorSections(t *testing.T) {
	spec, err := Parse([]byte(`name: x
initial:
  fontana:
    abstraction_range: [0.4, 0.1]
    max_depth: 6
  count: 5
`))
	require.NoError(t, err)
	require.NotNil(t, spec.Initial.Fontana)
	assert.Nil(t, spec.Initial.BTree)
	assert.Equal(t, [2]float64{0.4, 0.1}, spec.Initial.Fontana.AbstractionRange)
	assert.Equal(t, 6, spec.Initial.Fontana.MaxDepth)
	def := config.DefaultFontanaGenConfig()
	assert.Equal(t, def.ApplicationRange, spec.Initial.Fontana.ApplicationRange, "unnamed parameters keep their defaults")
	assert.Equal(t, def.MaxFreeVars, spec.Initial.Fontana.MaxFreeVars)

	spec, err = Parse([]byte("name: x\ninitial:\n  btree: {size: 3, standardization: none}\n  count: 2\n"))
	require.NoError(t, err)
	require.NotNil(t, spec.Initial.BTree)
	assert.Equal(t, 3, spec.Initial.BTree.Size)
	assert.Equal(t, config.StandardizationNone, spec.Initial.BTree.Standardization)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown measurement",
			yaml:    "name: x\ninitial: {expressions: ['\\x.x']}\nmeasurements: [len, fitness]\n",
			wantErr: `unknown measurement "fitness"`,
		},
		{
			name:    "missing name",
			yaml:    "initial: {expressions: ['\\x.x']}\n",
			wantErr: "name is required",
		},
		{
			name:    "two sources",
			yaml:    "name: x\ninitial: {expressions: ['\\x.x'], file: terms.txt}\n",
			wantErr: "exactly one of",
		},
		{
			name:    "no source",
			yaml:    "name: x\n",
			wantErr: "exactly one of",
		},
		{
			name:    "unknown key",
			yaml:    "name: x\ninitial: {expressions: ['\\x.x']}\ncolisions: 5\n",
			wantErr: "colisions",
		},
		{
			name:    "bad standardization",
			yaml:    "name: x\ninitial: {btree: {standardization: sideways}}\n",
			wantErr: "invalid standardization",
		},
		{
			name:    "bad reactor",
			yaml:    "name: x\ninitial: {expressions: ['\\x.x']}\nreactor: {capacity: -1}\n",
			wantErr: "capacity must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Parse([]byte("name: x\ninitial: {expressions: ['\\x.x']}\nmeasurements: [magic]\n"))
	assert.True(t, errors.Is(err, ErrUnknownMeasurement))
}

func TestRunner_RecordsPolls(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)

	store := openStore(t)
	m := metrics.New()
	runner := NewRunner(WithStore(store), WithMetrics(m), WithLogger(testutil.NewTestLogger(t)), WithConcurrency(2))

	result, err := runner.Run(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, result.Replicates, 2)

	for i, rep := range result.Replicates {
		require.NotNil(t, rep)
		assert.Equal(t, i, rep.Replicate)
		assert.Equal(t, spec.Reactor.Seed.Derive(i).String(), rep.Seed)
		assert.Equal(t, 100, rep.Stats.Collisions)
		require.Len(t, rep.Polls, 5)
		for j, p := range rep.Polls {
			assert.Equal(t, j*25, p.Collisions)
			assert.Equal(t, 4.0, p.Values[MeasureLen])
			assert.LessOrEqual(t, len(p.TopK), 3)
			assert.Len(t, p.State, 4)
		}

		run, err := store.GetRun(rep.RunID)
		require.NoError(t, err)
		assert.Equal(t, state.RunStatusCompleted, run.Status)
		assert.Equal(t, i, run.Replicate)
		assert.Contains(t, run.Config, "name: skk")

		polls, err := store.GetPolls(rep.RunID)
		require.NoError(t, err)
		require.Len(t, polls, 5)
		assert.Equal(t, 100, polls[4].SeriesNumber)
		assert.Equal(t, float64(rep.Stats.Productive), polls[4].Values["productive"])

		series, err := store.ListSnapshotSeries(rep.RunID)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 25, 50, 75, 100}, series)

		top, err := store.GetTopTerms(rep.RunID, 100)
		require.NoError(t, err)
		require.NotEmpty(t, top)
		assert.Equal(t, 1, top[0].Rank)
		for k := 1; k < len(top); k++ {
			assert.GreaterOrEqual(t, top[k-1].Count, top[k].Count)
		}
	}

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunner_Reproducible(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)

	a, err := NewRunner().Run(context.Background(), spec)
	require.NoError(t, err)
	b, err := NewRunner(WithConcurrency(1)).Run(context.Background(), spec)
	require.NoError(t, err)

	for i := range a.Replicates {
		assert.Equal(t, a.Replicates[i].Stats, b.Replicates[i].Stats)
		last := len(a.Replicates[i].Polls) - 1
		assert.Equal(t, a.Replicates[i].Polls[last].State, b.Replicates[i].Polls[last].State)
	}
}

func TestRunner_TooSmallSoup(t *testing.T) {
	spec, err := Parse([]byte("name: lonely\ninitial: {expressions: ['\\x.x']}\ncollisions: 10\npoll_every: 2\n"))
	require.NoError(t, err)

	result, err := NewRunner().Run(context.Background(), spec)
	require.NoError(t, err)
	rep := result.Replicates[0]
	assert.Zero(t, rep.Stats.Collisions)
	assert.Len(t, rep.Polls, 1)
}

func TestRunner_Cancelled(t *testing.T) {
	spec, err := Load(filepath.Join("testdata", "basic.yaml"))
	require.NoError(t, err)

	store := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner(WithStore(store)).Run(ctx, spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	for _, run := range runs {
		assert.Equal(t, state.RunStatusFailed, run.Status)
	}
}

func TestTopTerms(t *testing.T) {
	spec, err := Parse([]byte("name: x\ninitial: {expressions: ['\\x.x', '\\x.x', '\\x.\\y.x']}\n"))
	require.NoError(t, err)
	terms, err := InitialTerms(spec)
	require.NoError(t, err)
	require.Len(t, terms, 3)

	top := TopTerms(analysis.KMostFrequent(terms, 5))
	require.Len(t, top, 2)
	assert.Equal(t, state.TopTerm{Rank: 1, Expression: "λa.a", Count: 2}, top[0])
	assert.Equal(t, state.TopTerm{Rank: 2, Expression: "λa.λb.a", Count: 1}, top[1])
}
