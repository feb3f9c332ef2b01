// Package state persists experiment results in SQLite.
// It records runs, the measurements polled during each run, and snapshots of
// the population at poll time. Recorded data is write-once; nothing here is
// ever loaded back into a soup.
package state

import "time"

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one replicate of an experiment.
type Run struct {
	ID string
	// Name is the experiment name.
	Name      string
	Replicate int
	// Seed is the hex seed of the replicate's soup, or "none".
	Seed string
	// Config is the experiment definition as YAML.
	Config      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Poll holds the numeric measurements taken at one point of a run.
type Poll struct {
	RunID string
	// SeriesNumber is the number of collisions performed before the poll.
	SeriesNumber int
	Values       map[string]float64
}

// TopTerm is one entry of a most-frequent list.
type TopTerm struct {
	Rank       int
	Expression string
	Count      int
}

// Store is the result store used by the experiment runner and the CLI.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(name string, replicate int, seed, config string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	RecordPoll(poll *Poll) error
	GetPolls(runID string) ([]*Poll, error)

	RecordTopTerms(runID string, series int, top []TopTerm) error
	GetTopTerms(runID string, series int) ([]TopTerm, error)

	RecordSnapshot(runID string, series int, expressions []string) error
	GetSnapshot(runID string, series int) ([]string, error)
	ListSnapshotSeries(runID string) ([]int, error)
}
