package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/checkpoint"
	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/scrape"
	"github.com/chronicleworks/wikichron/internal/storage"
)

const (
	// TimelineCheckpointKey names the timeline batch checkpoint.
	TimelineCheckpointKey = "timeline_checkpoint"
	// TimelinePath is the canonical timeline artifact.
	TimelinePath = "timeline.json"
	// TimelineMarkdownPath is the rendered form of the same events.
	TimelineMarkdownPath = "timeline.md"
)

// Page is one unit of analyzable content.
type Page struct {
	Name    string `json:"filename"`
	Content string `json:"content"`
}

// Event is one dated entry extracted by the model.
type Event struct {
	Date          string   `json:"date"`
	DatePrecision string   `json:"date_precision,omitempty"`
	Description   string   `json:"description"`
	People        []string `json:"people,omitempty"`
	Source        string   `json:"source,omitempty"`
	Category      string   `json:"category,omitempty"`
}

// Timeline is the canonical timeline artifact.
type Timeline struct {
	TotalEvents   int       `json:"total_events"`
	GeneratedAt   time.Time `json:"generated_at"`
	Complete      bool      `json:"complete"`
	FailedBatches []int     `json:"failed_batches"`
	Events        []Event   `json:"events"`
}

// Counts implements checkpoint.Countable: events extracted, and events
// carrying a description.
func (t Timeline) Counts() checkpoint.Counts {
	nonEmpty := 0
	for _, e := range t.Events {
		if strings.TrimSpace(e.Description) != "" {
			nonEmpty++
		}
	}
	return checkpoint.Counts{Items: len(t.Events), NonEmpty: nonEmpty}
}

// Config bounds the analysis batches.
type Config struct {
	Subject       string
	BatchSize     int
	MaxBatchChars int
	SaveEvery     int
}

// TimelineGenerator drives the batched event-extraction phase.
type TimelineGenerator struct {
	invoker   Invoker
	ckpts     checkpoint.Store
	artifacts checkpoint.Store
	blobs     storage.BlobStore
	retry     *pipeline.RetryPolicy
	cfg       Config
	logger    *zap.Logger
}

// NewTimelineGenerator builds the generator. ckpts holds the batch
// checkpoint; the canonical artifacts go to blobs.
func NewTimelineGenerator(invoker Invoker, ckpts checkpoint.Store, blobs storage.BlobStore, retry *pipeline.RetryPolicy, cfg Config, logger *zap.Logger) *TimelineGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimelineGenerator{
		invoker:   invoker,
		ckpts:     ckpts,
		artifacts: checkpoint.NewBlobStore(blobs, logger),
		blobs:     blobs,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
	}
}

// LoadPages reads every clean-text artifact into memory, sorted by
// name so batch numbering is stable across runs.
func LoadPages(ctx context.Context, blobs storage.BlobStore) ([]Page, error) {
	paths, err := blobs.List(ctx, scrape.CleanTextPrefix)
	if err != nil {
		return nil, fmt.Errorf("list clean text: %w", err)
	}
	sort.Strings(paths)

	pages := make([]Page, 0, len(paths))
	for _, p := range paths {
		data, err := blobs.Get(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, scrape.CleanTextPrefix), ".txt")
		pages = append(pages, Page{Name: name, Content: string(data)})
	}
	return pages, nil
}

// Run extracts events from pages batch by batch, sorts them by date,
// and finalizes the canonical timeline plus its markdown rendering.
// Failed batches degrade completeness; a later run retries them.
func (g *TimelineGenerator) Run(ctx context.Context, pages []Page) (Timeline, pipeline.Report, error) {
	started := time.Now()
	processor := &pipeline.Processor[Page, Event]{
		Store:     g.ckpts,
		Key:       TimelineCheckpointKey,
		BatchSize: g.cfg.BatchSize,
		SaveEvery: g.cfg.SaveEvery,
		Retry:     g.retry,
		Logger:    g.logger,
	}

	events, report, err := processor.Run(ctx, pages, func(ctx context.Context, batch []Page) ([]Event, error) {
		result, err := g.analyzeBatch(ctx, batch)
		if err != nil {
			metrics.ObserveBatch("failed")
			return nil, err
		}
		metrics.ObserveBatch("ok")
		return result, nil
	})
	if err != nil {
		return Timeline{}, report, err
	}

	SortEvents(events)
	timeline := Timeline{
		TotalEvents:   len(events),
		GeneratedAt:   time.Now().UTC(),
		Complete:      report.Complete,
		FailedBatches: report.FailedBatches,
		Events:        events,
	}

	accepted, err := checkpoint.Finalize(ctx, g.artifacts, TimelinePath, timeline, g.logger)
	if err != nil {
		return timeline, report, fmt.Errorf("finalize timeline: %w", err)
	}
	if accepted {
		if err := writeTimelineMarkdown(ctx, g.blobs, timeline); err != nil {
			return timeline, report, err
		}
	}

	metrics.ObservePhase("timeline", time.Since(started))
	g.logger.Info("timeline generation finished",
		zap.Int("events", len(events)),
		zap.Bool("complete", report.Complete),
		zap.Ints("failed_batches", report.FailedBatches),
	)
	return timeline, report, nil
}

func (g *TimelineGenerator) analyzeBatch(ctx context.Context, batch []Page) ([]Event, error) {
	items := make([]pipeline.ContentItem, len(batch))
	for i, p := range batch {
		items[i] = pipeline.ContentItem{Name: p.Name, Content: p.Content}
	}
	prompt := eventsPrompt(g.cfg.Subject, pipeline.Assemble(items, g.cfg.MaxBatchChars))

	response, err := g.invoker.Invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}
	events, err := parseEvents(response)
	if err != nil {
		// A malformed reply is a permanent batch failure, not worth a
		// service retry.
		return nil, pipeline.NewError(pipeline.KindBadResponse, "parse events", err)
	}
	return events, nil
}

func eventsPrompt(subject, content string) string {
	return fmt.Sprintf(`Analyze the following wiki pages about %s and extract chronological events.

For each significant event you find:
1. Extract the date (be as specific as possible)
2. Write a brief description (1-2 sentences)
3. Note the source page
4. Identify key people involved

Format your response as JSON:
{
  "events": [
    {
      "date": "YYYY-MM-DD or YYYY-MM or YYYY",
      "date_precision": "exact|month|year|approximate",
      "description": "Event description",
      "people": ["Person1", "Person2"],
      "source": "Page name",
      "category": "Category (e.g., Personal Life, Internet, Legal, etc.)"
    }
  ]
}

Content to analyze:
%s
`, subject, content)
}

var jsonFence = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// parseEvents decodes the model reply, unwrapping a markdown code
// fence if the model added one.
func parseEvents(response string) ([]Event, error) {
	if m := jsonFence.FindStringSubmatch(response); m != nil {
		response = m[1]
	}
	var payload struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal([]byte(response), &payload); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	if payload.Events == nil {
		return nil, fmt.Errorf("reply has no events field")
	}
	return payload.Events, nil
}

// SortEvents orders events chronologically; events whose dates cannot
// be parsed sort last.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		yi, mi, di := parseDate(events[i].Date)
		yj, mj, dj := parseDate(events[j].Date)
		if yi != yj {
			return yi < yj
		}
		if mi != mj {
			return mi < mj
		}
		return di < dj
	})
}

func parseDate(date string) (year, month, day int) {
	year, month, day = 9999, 1, 1
	parts := strings.Split(date, "-")
	y, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return 9999, 1, 1
	}
	year = y
	if len(parts) > 1 {
		if m, err := strconv.Atoi(parts[1]); err == nil {
			month = m
		} else {
			return 9999, 1, 1
		}
	}
	if len(parts) > 2 {
		if d, err := strconv.Atoi(parts[2]); err == nil {
			day = d
		} else {
			return 9999, 1, 1
		}
	}
	return year, month, day
}
