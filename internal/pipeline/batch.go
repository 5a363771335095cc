package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// batchStateVersion tags the persisted batch checkpoint schema.
const batchStateVersion = 1

// CheckpointStore is the durable document store the processor saves
// progress to. Implemented by the checkpoint package.
type CheckpointStore interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
}

// BatchState is the durable checkpoint of a batch run. Results are
// append-only; Done records which batch numbers contributed to them, so
// a resumed run never re-executes or double-appends a batch.
type BatchState[R any] struct {
	Version       int          `json:"version"`
	Results       []R          `json:"results"`
	Done          map[int]bool `json:"done"`
	LastBatch     int          `json:"last_batch"`
	FailedBatches []int        `json:"failed_batches"`
	TotalBatches  int          `json:"total_batches"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Report summarizes a batch run for the caller.
type Report struct {
	Processed     int
	FailedBatches []int
	Complete      bool
}

// Processor drives discrete work items through a unit-of-work function
// in fixed-size batches, checkpointing accumulated results so an
// interrupted run resumes without loss or duplication.
type Processor[T, R any] struct {
	Store     CheckpointStore
	Key       string
	BatchSize int
	SaveEvery int
	Retry     *RetryPolicy
	Logger    *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Run processes items in batch-number order, retrying the earliest
// previously failed batch first. On success the batch's results are
// appended and its number leaves the failed set; the checkpoint is
// persisted every SaveEvery successes and immediately on any failure,
// without advancing completion, so a crash loses at most SaveEvery
// batches of successful output and never a recorded failure.
func (p *Processor[T, R]) Run(
	ctx context.Context,
	items []T,
	work func(ctx context.Context, batch []T) ([]R, error),
) ([]R, Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	saveEvery := p.SaveEvery
	if saveEvery <= 0 {
		saveEvery = 5
	}

	state := p.loadState(ctx, logger)
	total := (len(items) + p.BatchSize - 1) / p.BatchSize
	state.TotalBatches = total

	failed := make(map[int]bool, len(state.FailedBatches))
	for _, b := range state.FailedBatches {
		failed[b] = true
	}

	// Retry the earliest known failure before making new progress.
	start := state.LastBatch + 1
	if len(failed) > 0 {
		if first := minKey(failed); first < start {
			start = first
		}
	}

	save := func() error {
		state.FailedBatches = sortedKeys(failed)
		state.UpdatedAt = now()
		if err := p.Store.Save(ctx, p.Key, state); err != nil {
			return fmt.Errorf("save checkpoint %s: %w", p.Key, err)
		}
		return nil
	}

	sinceSave := 0
	for b := start; b < total; b++ {
		if state.Done[b] {
			continue
		}
		if err := ctx.Err(); err != nil {
			if saveErr := save(); saveErr != nil {
				return state.Results, p.report(state, failed), saveErr
			}
			return state.Results, p.report(state, failed), err
		}

		lo := b * p.BatchSize
		hi := lo + p.BatchSize
		if hi > len(items) {
			hi = len(items)
		}

		results, err := Attempt(ctx, p.Retry, func(ctx context.Context) ([]R, error) {
			return work(ctx, items[lo:hi])
		})
		if err != nil {
			failed[b] = true
			logger.Warn("batch failed",
				zap.String("phase", p.Key),
				zap.Int("batch", b),
				zap.Error(err),
			)
			// Failures are checkpointed immediately and never advance
			// LastBatch, so the batch is retried on the next run.
			if saveErr := save(); saveErr != nil {
				return state.Results, p.report(state, failed), saveErr
			}
			continue
		}

		state.Results = append(state.Results, results...)
		state.Done[b] = true
		delete(failed, b)
		for state.Done[state.LastBatch+1] {
			state.LastBatch++
		}

		sinceSave++
		if sinceSave >= saveEvery {
			if err := save(); err != nil {
				return state.Results, p.report(state, failed), err
			}
			sinceSave = 0
		}
	}

	if err := save(); err != nil {
		return state.Results, p.report(state, failed), err
	}
	return state.Results, p.report(state, failed), nil
}

func (p *Processor[T, R]) report(state *BatchState[R], failed map[int]bool) Report {
	return Report{
		Processed:     len(state.Results),
		FailedBatches: sortedKeys(failed),
		Complete:      len(failed) == 0,
	}
}

// loadState reads the prior checkpoint. Missing, corrupt or
// schema-mismatched documents start a fresh run; corruption is already
// logged by the store.
func (p *Processor[T, R]) loadState(ctx context.Context, logger *zap.Logger) *BatchState[R] {
	state := &BatchState[R]{Version: batchStateVersion, LastBatch: -1, Done: make(map[int]bool)}
	var loaded BatchState[R]
	found, err := p.Store.Load(ctx, p.Key, &loaded)
	if err != nil || !found {
		return state
	}
	if loaded.Version != batchStateVersion {
		logger.Warn("checkpoint schema mismatch, starting fresh",
			zap.String("phase", p.Key),
			zap.Int("found_version", loaded.Version),
			zap.Int("want_version", batchStateVersion),
		)
		return state
	}
	if loaded.Done == nil {
		loaded.Done = make(map[int]bool)
	}
	logger.Info("resumed from checkpoint",
		zap.String("phase", p.Key),
		zap.Int("results", len(loaded.Results)),
		zap.Int("last_batch", loaded.LastBatch),
		zap.Ints("failed_batches", loaded.FailedBatches),
	)
	return &loaded
}

func minKey(set map[int]bool) int {
	first := -1
	for k := range set {
		if first == -1 || k < first {
			first = k
		}
	}
	return first
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
