// Package checkpoint provides durable load/save of per-phase progress
// documents and the monotonic finalize rule protecting canonical
// artifacts from regression.
package checkpoint

import (
	"context"

	"go.uber.org/zap"
)

// Store reads and writes named JSON documents. A Load that finds a
// corrupt document reports it absent so that a damaged checkpoint costs
// re-work, never a stuck phase.
type Store interface {
	Load(ctx context.Context, key string, v any) (bool, error)
	Save(ctx context.Context, key string, v any) error
}

// Counts summarizes an artifact for the never-regress comparison.
type Counts struct {
	Items    int
	NonEmpty int
}

// Countable is implemented by canonical artifacts subject to the
// never-regress rule.
type Countable interface {
	Counts() Counts
}

// Finalize writes candidate under key only if it does not regress the
// existing artifact: the candidate must match or exceed the existing
// item count and non-empty count. A rejected candidate leaves the
// existing artifact untouched and returns accepted=false; rejection is
// a warning, not a phase failure.
func Finalize[T Countable](ctx context.Context, s Store, key string, candidate T, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var existing T
	found, err := s.Load(ctx, key, &existing)
	if err != nil {
		return false, err
	}
	if found {
		have := existing.Counts()
		want := candidate.Counts()
		if want.Items < have.Items || want.NonEmpty < have.NonEmpty {
			logger.Warn("refusing to overwrite more complete artifact",
				zap.String("artifact", key),
				zap.Int("existing_items", have.Items),
				zap.Int("existing_nonempty", have.NonEmpty),
				zap.Int("candidate_items", want.Items),
				zap.Int("candidate_nonempty", want.NonEmpty),
			)
			return false, nil
		}
	}
	if err := s.Save(ctx, key, candidate); err != nil {
		return false, err
	}
	return true, nil
}
