package analyze

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/checkpoint"
	"github.com/chronicleworks/wikichron/internal/media"
	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/storage"
	"github.com/chronicleworks/wikichron/internal/wiki"
)

const (
	// LinkCheckpointKey names the media linking checkpoint.
	LinkCheckpointKey = "media_linking_checkpoint"
	// LinkedTimelinePath is the media-enriched timeline artifact.
	LinkedTimelinePath = "timeline_with_media.json"
)

const linkStateVersion = 1

// EventMedia is the deduplicated media attached to one event.
type EventMedia struct {
	Images []media.ImageRecord `json:"images"`
	Videos []wiki.Video        `json:"videos"`
}

// LinkedEvent is a timeline event with the media of its source page.
type LinkedEvent struct {
	Event
	Media EventMedia `json:"media"`
}

// LinkedTimeline is the media-enriched timeline artifact.
type LinkedTimeline struct {
	TotalEvents     int           `json:"total_events"`
	EventsWithMedia int           `json:"events_with_media"`
	GeneratedAt     time.Time     `json:"generated_at"`
	Events          []LinkedEvent `json:"events"`
}

// linkState is the persisted linking progress; events are linked in
// timeline order so the count doubles as a cursor.
type linkState struct {
	Version   int           `json:"version"`
	Events    []LinkedEvent `json:"events_with_media"`
	UpdatedAt time.Time     `json:"last_updated"`
}

// Linker joins the timeline with the media index, attaching each
// event's source-page media, deduplicated by URL.
type Linker struct {
	artifacts checkpoint.Store
	ckpts     checkpoint.Store
	blobs     storage.BlobStore
	saveEvery int
	logger    *zap.Logger
}

// NewLinker builds a Linker that checkpoints every saveEvery events.
func NewLinker(blobs storage.BlobStore, ckpts checkpoint.Store, saveEvery int, logger *zap.Logger) *Linker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if saveEvery <= 0 {
		saveEvery = 100
	}
	return &Linker{
		artifacts: checkpoint.NewBlobStore(blobs, logger),
		ckpts:     ckpts,
		blobs:     blobs,
		saveEvery: saveEvery,
		logger:    logger,
	}
}

// Run links media onto every timeline event and writes the enriched
// artifact. An empty or missing media index skips the phase; the plain
// timeline stays authoritative.
func (l *Linker) Run(ctx context.Context) (linked LinkedTimeline, skipped bool, err error) {
	started := time.Now()

	var timeline Timeline
	found, err := l.artifacts.Load(ctx, TimelinePath, &timeline)
	if err != nil {
		return LinkedTimeline{}, false, err
	}
	if !found {
		return LinkedTimeline{}, false, fmt.Errorf("timeline artifact not found; generate the timeline first")
	}

	var index media.Index
	found, err = l.artifacts.Load(ctx, media.IndexPath, &index)
	if err != nil {
		return LinkedTimeline{}, false, err
	}
	if !found || len(index.Pages) == 0 {
		l.logger.Warn("media index missing or empty, skipping media linking")
		return LinkedTimeline{}, true, nil
	}

	pageMedia := make(map[string]media.PageMedia, len(index.Pages))
	for _, p := range index.Pages {
		pageMedia[p.SafeFilename] = p
	}

	state := l.loadState(ctx)
	if len(state.Events) > len(timeline.Events) {
		// A shorter timeline means the checkpoint belongs to an older,
		// larger run; restart linking.
		l.logger.Warn("linking checkpoint ahead of timeline, starting fresh",
			zap.Int("checkpointed", len(state.Events)),
			zap.Int("timeline_events", len(timeline.Events)),
		)
		state = linkState{Version: linkStateVersion}
	}

	sinceSave := 0
	for idx := len(state.Events); idx < len(timeline.Events); idx++ {
		if err := ctx.Err(); err != nil {
			l.saveState(ctx, state)
			return LinkedTimeline{}, false, err
		}

		event := timeline.Events[idx]
		linked := LinkedEvent{Event: event, Media: EventMedia{
			Images: []media.ImageRecord{},
			Videos: []wiki.Video{},
		}}

		if page, ok := pageMedia[wiki.SafeFilename(event.Source)]; ok {
			linked.Media.Images = pipeline.Dedup(page.Images, func(r media.ImageRecord) string {
				return r.URL
			})
			linked.Media.Videos = pipeline.Dedup(page.Videos, func(v wiki.Video) string {
				return v.URL
			})
		}
		state.Events = append(state.Events, linked)

		sinceSave++
		if sinceSave >= l.saveEvery {
			l.saveState(ctx, state)
			sinceSave = 0
		}
	}
	l.saveState(ctx, state)

	withMedia := 0
	for _, e := range state.Events {
		if len(e.Media.Images) > 0 || len(e.Media.Videos) > 0 {
			withMedia++
		}
	}
	out := LinkedTimeline{
		TotalEvents:     len(state.Events),
		EventsWithMedia: withMedia,
		GeneratedAt:     time.Now().UTC(),
		Events:          state.Events,
	}
	if err := l.artifacts.Save(ctx, LinkedTimelinePath, out); err != nil {
		return LinkedTimeline{}, false, err
	}

	metrics.ObservePhase("link", time.Since(started))
	l.logger.Info("media linking complete",
		zap.Int("events", out.TotalEvents),
		zap.Int("events_with_media", out.EventsWithMedia),
	)
	return out, false, nil
}

func (l *Linker) loadState(ctx context.Context) linkState {
	var state linkState
	found, err := l.ckpts.Load(ctx, LinkCheckpointKey, &state)
	if err != nil {
		l.logger.Warn("linking checkpoint unavailable, starting fresh", zap.Error(err))
		found = false
	}
	if found && state.Version != linkStateVersion {
		l.logger.Warn("linking checkpoint schema mismatch, starting fresh",
			zap.Int("have", state.Version),
			zap.Int("want", linkStateVersion),
		)
		found = false
	}
	if !found {
		state = linkState{}
	}
	state.Version = linkStateVersion
	return state
}

func (l *Linker) saveState(ctx context.Context, state linkState) {
	state.UpdatedAt = time.Now().UTC()
	if err := l.ckpts.Save(ctx, LinkCheckpointKey, state); err != nil {
		l.logger.Error("failed to save linking checkpoint", zap.Error(err))
		return
	}
	metrics.ObserveCheckpointSave(LinkCheckpointKey)
}
