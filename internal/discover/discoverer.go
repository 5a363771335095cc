package discover

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/checkpoint"
	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/wiki"
)

// CheckpointKey names the discovery checkpoint document.
const CheckpointKey = "discovery_checkpoint"

const stateVersion = 1

// State is the persisted discovery progress. The queue is truncated to
// a bounded prefix on save; the reseed rule in Run compensates when the
// truncation dropped the true remaining frontier.
type State struct {
	Version    int               `json:"version"`
	Discovered map[string]string `json:"discovered_pages"`
	Visited    []string          `json:"visited_urls"`
	Queue      []string          `json:"to_visit_queue"`
	UpdatedAt  time.Time         `json:"last_updated"`
	Total      int               `json:"total_discovered"`
}

// Result is the outcome of a discovery run.
type Result struct {
	Pages   map[string]string
	Visited int
	Capped  bool
}

// Config bounds the crawl.
type Config struct {
	MaxPages        int
	CheckpointEvery int
	FrontierCap     int
	Delay           time.Duration
}

// Discoverer walks the wiki link graph breadth-first from the seed,
// recording every content page it can reach.
type Discoverer struct {
	site    wiki.Site
	fetcher wiki.Fetcher
	store   checkpoint.Store
	retry   *pipeline.RetryPolicy
	cfg     Config
	logger  *zap.Logger
}

// New builds a Discoverer.
func New(site wiki.Site, fetcher wiki.Fetcher, store checkpoint.Store, retry *pipeline.RetryPolicy, cfg Config, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		site:    site,
		fetcher: fetcher,
		store:   store,
		retry:   retry,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run crawls until the frontier is exhausted or the page cap is hit,
// checkpointing periodically and once more on exit. A resumed run with
// an empty persisted queue but a non-empty discovered map reseeds the
// frontier from one discovered page, since the bounded queue prefix in
// the checkpoint may have dropped the true remaining frontier.
func (d *Discoverer) Run(ctx context.Context) (Result, error) {
	state := d.loadState(ctx)
	frontier := NewFrontier(state.Queue, state.Visited)

	if frontier.Len() == 0 {
		if len(state.Discovered) == 0 {
			d.logger.Info("starting fresh discovery", zap.String("seed", d.site.Seed))
			frontier.Push(d.site.Seed)
		} else {
			for url := range state.Discovered {
				d.logger.Info("frontier empty on resume, reseeding from discovered page",
					zap.String("url", url))
				frontier.Reseed(url)
				break
			}
		}
	} else {
		d.logger.Info("resuming discovery",
			zap.Int("discovered", len(state.Discovered)),
			zap.Int("queued", frontier.Len()),
		)
	}

	sinceCheckpoint := 0
	for frontier.Len() > 0 && len(state.Discovered) < d.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			d.saveState(ctx, state, frontier)
			return Result{}, err
		}

		url, ok := frontier.Pop()
		if !ok {
			break
		}

		page, err := pipeline.Attempt(ctx, d.retry, func(ctx context.Context) (wiki.Page, error) {
			return d.fetcher.Fetch(ctx, url)
		})
		if err != nil {
			// Unreachable pages are dropped for this pass; discovery
			// values coverage, not completeness per page.
			d.logger.Warn("dropping unreachable page", zap.String("url", url), zap.Error(err))
			continue
		}

		title, links, err := wiki.ContentLinks(d.site, url, page.Body)
		if err != nil {
			d.logger.Warn("dropping unparsable page", zap.String("url", url), zap.Error(err))
			continue
		}

		if title != "" {
			if _, known := state.Discovered[url]; !known {
				state.Discovered[url] = title
				metrics.ObservePageDiscovered()
				sinceCheckpoint++
			}
		}

		for _, link := range links {
			frontier.Push(link)
		}

		if sinceCheckpoint >= d.cfg.CheckpointEvery {
			d.saveState(ctx, state, frontier)
			sinceCheckpoint = 0
		}

		if d.cfg.Delay > 0 {
			pipeline.Pause(ctx, d.cfg.Delay)
		}
	}

	d.saveState(ctx, state, frontier)

	capped := len(state.Discovered) >= d.cfg.MaxPages
	d.logger.Info("discovery complete",
		zap.Int("pages", len(state.Discovered)),
		zap.Bool("capped", capped),
	)
	return Result{
		Pages:   state.Discovered,
		Visited: frontier.VisitedCount(),
		Capped:  capped,
	}, nil
}

func (d *Discoverer) loadState(ctx context.Context) State {
	var state State
	found, err := d.store.Load(ctx, CheckpointKey, &state)
	if err != nil {
		d.logger.Warn("discovery checkpoint unavailable, starting fresh", zap.Error(err))
		found = false
	}
	if found && state.Version != stateVersion {
		d.logger.Warn("discovery checkpoint schema mismatch, starting fresh",
			zap.Int("have", state.Version),
			zap.Int("want", stateVersion),
		)
		found = false
	}
	if !found {
		state = State{}
	}
	if state.Discovered == nil {
		state.Discovered = map[string]string{}
	}
	state.Version = stateVersion
	return state
}

func (d *Discoverer) saveState(ctx context.Context, state State, frontier *Frontier) {
	state.Visited = frontier.Visited()
	state.Queue = frontier.Pending(d.cfg.FrontierCap)
	state.UpdatedAt = time.Now().UTC()
	state.Total = len(state.Discovered)

	if err := d.store.Save(ctx, CheckpointKey, state); err != nil {
		d.logger.Error("failed to save discovery checkpoint", zap.Error(err))
		return
	}
	metrics.ObserveCheckpointSave(CheckpointKey)
	d.logger.Info("discovery checkpoint saved",
		zap.Int("discovered", len(state.Discovered)),
		zap.Int("queued", len(state.Queue)),
	)
}
