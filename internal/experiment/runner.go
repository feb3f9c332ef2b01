package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/alchemy/internal/analysis"
	"github.com/leapstack-labs/alchemy/internal/generators"
	"github.com/leapstack-labs/alchemy/internal/metrics"
	"github.com/leapstack-labs/alchemy/internal/soup"
	"github.com/leapstack-labs/alchemy/internal/state"
	"github.com/leapstack-labs/alchemy/pkg/lambda"
)

// Runner executes experiments.
type Runner struct {
	store       state.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore records every run and poll in store.
func WithStore(store state.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithMetrics exports reaction statistics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger for progress and, when an experiment asks for
// it, per-reaction records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConcurrency bounds the replicates running at once. Values below one
// mean GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// NewRunner creates a runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = runtime.GOMAXPROCS(0)
	}
	return r
}

// Result holds the outcome of every replicate, indexed by replicate number.
type Result struct {
	Name       string
	Replicates []*ReplicateResult
}

// ReplicateResult is the record of one soup.
type ReplicateResult struct {
	Replicate int
	// RunID is the store ID, empty without a store.
	RunID    string
	Seed     string
	Polls    []Poll
	Stats    soup.Stats
	Duration time.Duration
}

// Poll is the set of measurements taken at one point of a replicate.
type Poll struct {
	// Collisions is the number of collisions performed before the poll.
	Collisions int
	Values     map[Measurement]float64
	TopK       []analysis.ExpressionCount
	State      []string
}

// InitialTerms builds the starting population of spec.
func InitialTerms(spec *Spec) ([]*lambda.Term, error) {
	in := spec.Initial
	switch {
	case len(in.Expressions) > 0:
		return lambda.ParseAll(in.Expressions), nil
	case in.File != "":
		f, err := os.Open(spec.resolve(in.File))
		if err != nil {
			return nil, fmt.Errorf("failed to open initial expressions: %w", err)
		}
		defer func() { _ = f.Close() }()
		var terms []*lambda.Term
		for t := range lambda.ReadTerms(f) {
			terms = append(terms, t)
		}
		return terms, nil
	case in.BTree != nil:
		gen, err := generators.NewBTreeGen(*in.BTree)
		if err != nil {
			return nil, err
		}
		return gen.GenerateN(in.Count), nil
	case in.Fontana != nil:
		gen, err := generators.NewFontanaGen(*in.Fontana)
		if err != nil {
			return nil, err
		}
		return gen.GenerateN(in.Count), nil
	default:
		return nil, fmt.Errorf("no initial population")
	}
}

// Run executes every replicate of spec and waits for them. The first failing
// replicate cancels the rest. Cancellation is observed between polls.
func (r *Runner) Run(ctx context.Context, spec *Spec) (*Result, error) {
	initial, err := InitialTerms(spec)
	if err != nil {
		return nil, err
	}
	specYAML, err := spec.YAML()
	if err != nil {
		return nil, err
	}

	r.logger.Info("starting experiment",
		"name", spec.Name,
		"replicates", spec.Replicates,
		"initial", len(initial),
		"collisions", spec.Collisions,
	)

	result := &Result{Name: spec.Name, Replicates: make([]*ReplicateResult, spec.Replicates)}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range spec.Replicates {
		g.Go(func() error {
			rep, err := r.runReplicate(gCtx, spec, specYAML, i, initial)
			if err != nil {
				return fmt.Errorf("replicate %d: %w", i, err)
			}
			result.Replicates[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("experiment completed", "name", spec.Name)
	return result, nil
}

func (r *Runner) runReplicate(ctx context.Context, spec *Spec, specYAML string, i int, initial []*lambda.Term) (rep *ReplicateResult, err error) {
	start := time.Now()
	cfg := spec.Reactor
	cfg.Seed = cfg.Seed.Derive(i)
	logger := r.logger.With("experiment", spec.Name, "replicate", i)

	rep = &ReplicateResult{Replicate: i, Seed: cfg.Seed.String()}
	if r.store != nil {
		run, createErr := r.store.CreateRun(spec.Name, i, rep.Seed, specYAML)
		if createErr != nil {
			return nil, createErr
		}
		rep.RunID = run.ID
		defer func() {
			status, msg := state.RunStatusCompleted, ""
			if err != nil {
				status, msg = state.RunStatusFailed, err.Error()
			}
			if cerr := r.store.CompleteRun(run.ID, status, msg); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	s := soup.New(cfg, soup.WithLogger(logger))
	added := s.Perturb(initial...)
	logger.Debug("seeded soup", "added", added, "capacity", cfg.Capacity)

	if err := r.poll(spec, s, rep); err != nil {
		return nil, err
	}
	done := 0
	for done < spec.Collisions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := spec.Collisions - done
		if spec.PollEvery > 0 {
			batch = min(batch, spec.PollEvery)
		}
		before := s.Collisions()
		s.SimulateFor(batch, spec.Log)
		done += batch
		if s.Collisions() == before {
			logger.Warn("soup too small to react", "len", s.Len())
			break
		}
		if err := r.poll(spec, s, rep); err != nil {
			return nil, err
		}
	}

	rep.Stats = s.Stats()
	rep.Duration = time.Since(start)
	if r.metrics != nil {
		r.metrics.AddStats(spec.Name, rep.Stats)
		r.metrics.ObserveRun(spec.Name, rep.Duration)
	}
	logger.Info("replicate completed",
		"collisions", rep.Stats.Collisions,
		"productive", rep.Stats.Productive,
		"duration_ms", rep.Duration.Milliseconds(),
	)
	return rep, nil
}

// poll takes the requested measurements and records them.
func (r *Runner) poll(spec *Spec, s *soup.Soup, rep *ReplicateResult) error {
	pop := s.Snapshot()
	p := Poll{Collisions: s.Collisions(), Values: make(map[Measurement]float64)}
	for _, m := range spec.Measurements {
		switch m {
		case MeasureLen:
			p.Values[m] = float64(len(pop))
		case MeasureCollisions:
			p.Values[m] = float64(s.Collisions())
		case MeasureProductive:
			p.Values[m] = float64(s.Productive())
		case MeasureUnique:
			p.Values[m] = float64(len(analysis.UniqueExpressions(pop)))
		case MeasureEntropy:
			p.Values[m] = analysis.PopulationEntropy(pop)
		case MeasureTopK:
			p.TopK = analysis.KMostFrequent(pop, spec.TopK)
		case MeasureState:
			p.State = make([]string, len(pop))
			for i, t := range pop {
				p.State[i] = t.String()
			}
		}
	}
	rep.Polls = append(rep.Polls, p)

	if r.metrics != nil {
		entropy, ok := p.Values[MeasureEntropy]
		if !ok {
			entropy = analysis.PopulationEntropy(pop)
		}
		r.metrics.SetPopulation(spec.Name, rep.Replicate, len(pop), entropy)
	}

	if r.store == nil {
		return nil
	}
	values := make(map[string]float64, len(p.Values))
	for m, v := range p.Values {
		values[string(m)] = v
	}
	if len(values) > 0 {
		if err := r.store.RecordPoll(&state.Poll{RunID: rep.RunID, SeriesNumber: p.Collisions, Values: values}); err != nil {
			return err
		}
	}
	if p.TopK != nil {
		if err := r.store.RecordTopTerms(rep.RunID, p.Collisions, TopTerms(p.TopK)); err != nil {
			return err
		}
	}
	if p.State != nil {
		if err := r.store.RecordSnapshot(rep.RunID, p.Collisions, p.State); err != nil {
			return err
		}
	}
	return nil
}

// TopTerms ranks a KMostFrequent result, most frequent first.
func TopTerms(counts []analysis.ExpressionCount) []state.TopTerm {
	out := make([]state.TopTerm, 0, len(counts))
	for i := len(counts) - 1; i >= 0; i-- {
		out = append(out, state.TopTerm{
			Rank:       len(out) + 1,
			Expression: counts[i].Term.String(),
			Count:      counts[i].Count,
		})
	}
	return out
}
