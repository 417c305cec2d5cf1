package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("migration")

// --------------------------------------------------------------------------
// Run states
// --------------------------------------------------------------------------

// State is the stage a run reached.
type State uint8

const (
	StateLoaded         State = iota // the migration was handed to the runner
	StateValidated                   // all entries of both actions are well-formed
	StateKeysDiscovered              // candidate keys were listed for every pattern
	StateApplied                     // all entries queued their mutations
	StateCommitted                   // the batch was applied by the store
	StateFailed                      // the run stopped, nothing was committed by it
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "Loaded"
	case StateValidated:
		return "Validated"
	case StateKeysDiscovered:
		return "KeysDiscovered"
	case StateApplied:
		return "Applied"
	case StateCommitted:
		return "Committed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Report describes the outcome of a run.
type Report struct {
	Name      string
	Direction Direction
	State     State
	Queued    int          // number of queued operations
	Committed int          // number of results reported by the store
	Commands  []db.Command // the queued operations
	Results   []db.Result  // one result per committed operation
	Duration  time.Duration
}

// --------------------------------------------------------------------------
// Runner
// --------------------------------------------------------------------------

// Runner executes migrations against a store.
// A run validates the migration, lists the candidate keys of every discovery pattern once,
// lets every entry queue its mutations into one batch and commits that batch atomically.
// If anything fails before the commit, nothing is written.
type Runner struct {
	store     store.IStore
	registry  *Registry
	validator *Validator
}

// NewRunner creates a runner. A nil registry selects the built-in commands.
func NewRunner(s store.IStore, registry *Registry) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Runner{
		store:     s,
		registry:  registry,
		validator: NewValidator(registry),
	}
}

// Up runs the up action of the migration.
func (r *Runner) Up(ctx context.Context, m *Migration) (Report, error) {
	return r.Run(ctx, m, Up)
}

// Down runs the down action of the migration.
func (r *Runner) Down(ctx context.Context, m *Migration) (Report, error) {
	return r.Run(ctx, m, Down)
}

// Run runs one action of the migration and commits its mutations.
func (r *Runner) Run(ctx context.Context, m *Migration, dir Direction) (Report, error) {
	start := time.Now()

	report, batch, err := r.prepare(ctx, m, dir)
	if err == nil {
		err = r.commit(batch, &report)
	}
	if err != nil {
		report.State = StateFailed
	}

	report.Duration = time.Since(start)
	recordRun(dir, report, err, start)
	return report, err
}

// Plan runs one action of the migration without committing it. The report lists the
// operations a Run would commit.
func (r *Runner) Plan(ctx context.Context, m *Migration, dir Direction) (Report, error) {
	start := time.Now()

	report, _, err := r.prepare(ctx, m, dir)
	if err != nil {
		report.State = StateFailed
	}
	report.Duration = time.Since(start)
	return report, err
}

// prepare validates the migration, discovers the keys and applies the entries of the action
func (r *Runner) prepare(ctx context.Context, m *Migration, dir Direction) (Report, *Batch, error) {
	report := Report{Name: m.Name, Direction: dir, State: StateLoaded}

	// validate
	if err := r.validator.ValidateMigration(m); err != nil {
		log.Errorf("Migration %s is invalid: %v", m.Name, err)
		return report, nil, err
	}
	report.State = StateValidated

	records := m.Action(dir).([]any)
	entries := make([]Entry, len(records))
	for i, rec := range records {
		entries[i] = toEntry(rec.(map[string]any))
	}

	// discover keys
	keys, patterns, err := r.discover(ctx, entries)
	if err != nil {
		return report, nil, err
	}
	report.State = StateKeysDiscovered

	// apply entries
	batch := NewBatch(r.store)
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, nil, err
		}

		cmd, _ := r.registry.Lookup(entry.Cmd)
		if err := cmd.Apply(entry.Src, entry.Dst, keys[patterns[i]], batch); err != nil {
			log.Errorf("Entry %d of %s failed: %v", i, m.Name, err)
			return report, nil, fmt.Errorf("%s entry %d: %w", dir, i, err)
		}
	}
	report.State = StateApplied
	report.Queued = batch.Len()
	report.Commands = batch.Commands()

	log.Infof("Updates to perform: %d", batch.Len())
	return report, batch, nil
}

// discover lists the candidate keys of every distinct pattern once.
// It returns the keys per pattern and the pattern of every entry.
func (r *Runner) discover(ctx context.Context, entries []Entry) (map[string][]string, []string, error) {
	keys := make(map[string][]string)
	patterns := make([]string, len(entries))

	for i, entry := range entries {
		pattern, err := ResolvePattern(entry.Src.Key)
		if err != nil {
			return nil, nil, err
		}
		patterns[i] = pattern

		if _, ok := keys[pattern]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		found, err := r.store.Keys(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("listing keys for %s: %w", pattern, err)
		}
		log.Debugf("Pattern %s matched %d keys", pattern, len(found))
		keys[pattern] = found
	}
	return keys, patterns, nil
}

// commit commits the batch and fills in the report
func (r *Runner) commit(batch *Batch, report *Report) error {
	res, err := batch.Commit()
	if err != nil {
		log.Errorf("Migration %s was not committed: %v", report.Name, err)
		return err
	}

	report.State = StateCommitted
	report.Committed = len(res.Results)
	report.Results = res.Results

	log.Infof("Migration complete")
	return nil
}
