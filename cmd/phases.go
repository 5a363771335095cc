package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/analyze"
	"github.com/chronicleworks/wikichron/internal/app"
	"github.com/chronicleworks/wikichron/internal/discover"
	"github.com/chronicleworks/wikichron/internal/media"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/publisher"
	"github.com/chronicleworks/wikichron/internal/scrape"
)

func discoverPhase(ctx context.Context, a *app.App) (discover.Result, error) {
	d := discover.New(a.Site, a.Fetcher, a.Checkpoints, a.HTTPRetry, discover.Config{
		MaxPages:        a.Config.Crawl.MaxPages,
		CheckpointEvery: a.Config.Crawl.CheckpointEvery,
		FrontierCap:     a.Config.Crawl.FrontierCap,
		Delay:           a.Config.CrawlDelay(),
	}, a.Logger)
	return d.Run(ctx)
}

// loadDiscovered reads the discovery checkpoint so later phases can run
// without repeating the crawl.
func loadDiscovered(ctx context.Context, a *app.App) (map[string]string, error) {
	var state discover.State
	found, err := a.Checkpoints.Load(ctx, discover.CheckpointKey, &state)
	if err != nil {
		return nil, fmt.Errorf("load discovery checkpoint: %w", err)
	}
	if !found || len(state.Discovered) == 0 {
		return nil, fmt.Errorf("no discovered pages; run the discover phase first")
	}
	return state.Discovered, nil
}

func scrapePhase(ctx context.Context, a *app.App, pages map[string]string) (scrape.Report, error) {
	s := scrape.New(a.Site, a.Fetcher, a.Blobs, a.HTTPRetry, scrape.Config{
		Delay: a.Config.CrawlDelay(),
	}, a.Logger)
	return s.Run(ctx, pages)
}

func mediaPhase(ctx context.Context, a *app.App) (media.Report, error) {
	e := media.New(a.Blobs, a.Checkpoints, a.Fetcher, a.HTTPRetry, media.Config{
		MaxImageBytes:   a.Config.Media.MaxImageBytes,
		Delay:           a.Config.MediaDelay(),
		CheckpointEvery: a.Config.Media.CheckpointEvery,
	}, a.Logger)
	return e.Run(ctx)
}

func newInvoker(ctx context.Context, a *app.App) (analyze.Invoker, error) {
	return analyze.NewBedrockInvoker(ctx, a.Config.AI.ModelID, a.Config.AI.Region, a.Logger)
}

// subject is what the prompts say the wiki is about.
func subject(a *app.App) string {
	if s := a.Config.Wiki.Subject; s != "" {
		return s
	}
	return a.Site.Host
}

func timelinePhase(ctx context.Context, a *app.App, invoker analyze.Invoker) (analyze.Timeline, pipeline.Report, error) {
	pages, err := analyze.LoadPages(ctx, a.Blobs)
	if err != nil {
		return analyze.Timeline{}, pipeline.Report{}, err
	}
	if len(pages) == 0 {
		return analyze.Timeline{}, pipeline.Report{}, fmt.Errorf("no scraped pages; run the scrape phase first")
	}
	g := analyze.NewTimelineGenerator(invoker, a.Checkpoints, a.Blobs, a.AIRetry, analyze.Config{
		Subject:       subject(a),
		BatchSize:     a.Config.AI.BatchSize,
		MaxBatchChars: a.Config.AI.MaxBatchChars,
		SaveEvery:     a.Config.AI.CheckpointEvery,
	}, a.Logger)
	return g.Run(ctx, pages)
}

func summaryPhase(ctx context.Context, a *app.App, invoker analyze.Invoker) (bool, error) {
	g := analyze.NewSummaryGenerator(invoker, a.Blobs, a.AIRetry, subject(a), a.Logger)
	return g.Run(ctx, a.Config.Wiki.BaseURL)
}

func linkPhase(ctx context.Context, a *app.App) (analyze.LinkedTimeline, bool, error) {
	l := analyze.NewLinker(a.Blobs, a.Checkpoints, 100, a.Logger)
	return l.Run(ctx)
}

// publishPhase emits a completion event; publish failures are logged,
// never fatal.
func publishPhase(ctx context.Context, a *app.App, runID, phase string, complete, skipped bool, items int, phaseErr error) {
	event := publisher.PhaseEvent{
		RunID:      runID,
		Phase:      phase,
		Complete:   complete,
		Items:      items,
		Skipped:    skipped,
		FinishedAt: time.Now().UTC(),
	}
	if phaseErr != nil {
		event.Error = phaseErr.Error()
	}
	if _, err := a.Publisher.Publish(ctx, a.Config.PubSub.Topic, event); err != nil {
		a.Logger.Warn("phase event publish failed",
			zap.String("phase", phase),
			zap.Error(err),
		)
	}
}
