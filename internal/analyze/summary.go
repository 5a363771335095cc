package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/checkpoint"
	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/storage"
)

// SummaryPath is the rendered summary artifact.
const SummaryPath = "summary.md"

// minSummaryBytes is the size below which an existing summary is
// treated as a stub and regenerated.
const minSummaryBytes = 1024

// decadePromptLimit caps how many decade groups are inlined into the
// summary prompt.
const decadePromptLimit = 20

// SummaryGenerator produces the prose summary from the finalized
// timeline.
type SummaryGenerator struct {
	invoker   Invoker
	artifacts checkpoint.Store
	blobs     storage.BlobStore
	retry     *pipeline.RetryPolicy
	subject   string
	logger    *zap.Logger
}

// NewSummaryGenerator builds the generator.
func NewSummaryGenerator(invoker Invoker, blobs storage.BlobStore, retry *pipeline.RetryPolicy, subject string, logger *zap.Logger) *SummaryGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryGenerator{
		invoker:   invoker,
		artifacts: checkpoint.NewBlobStore(blobs, logger),
		blobs:     blobs,
		retry:     retry,
		subject:   subject,
		logger:    logger,
	}
}

// Run generates the summary from the timeline artifact. An existing
// summary above the stub threshold is kept untouched; delete it to
// force regeneration.
func (g *SummaryGenerator) Run(ctx context.Context, sourceURL string) (skipped bool, err error) {
	started := time.Now()

	size, err := g.blobs.Size(ctx, SummaryPath)
	if err != nil && !errors.Is(err, storage.ErrNotExist) {
		return false, fmt.Errorf("stat summary: %w", err)
	}
	if err == nil && size > minSummaryBytes {
		g.logger.Info("summary already exists, skipping",
			zap.Int64("bytes", size),
		)
		return true, nil
	}

	var timeline Timeline
	found, err := g.artifacts.Load(ctx, TimelinePath, &timeline)
	if err != nil {
		return false, err
	}
	if !found {
		return false, fmt.Errorf("timeline artifact not found; generate the timeline first")
	}

	prompt, err := summaryPrompt(g.subject, timeline.Events)
	if err != nil {
		return false, err
	}

	response, err := pipeline.Attempt(ctx, g.retry, func(ctx context.Context) (string, error) {
		return g.invoker.Invoke(ctx, prompt)
	})
	if err != nil {
		return false, fmt.Errorf("summary generation: %w", err)
	}

	final := renderSummary(g.subject, stripLeadingHeaders(response), sourceURL)
	if _, err := g.blobs.Put(ctx, SummaryPath, "text/markdown", strings.NewReader(final)); err != nil {
		return false, fmt.Errorf("write summary: %w", err)
	}

	metrics.ObservePhase("summary", time.Since(started))
	g.logger.Info("summary generated", zap.Int("events", len(timeline.Events)))
	return false, nil
}

// decadeGroup pairs a decade with its events for the prompt payload.
type decadeGroup struct {
	Decade int     `json:"decade"`
	Events []Event `json:"events"`
}

// groupByDecade buckets events by decade; events without a parseable
// year are dropped from the prompt payload.
func groupByDecade(events []Event) []decadeGroup {
	buckets := map[int][]Event{}
	for _, e := range events {
		if len(e.Date) < 4 {
			continue
		}
		year, err := strconv.Atoi(e.Date[:4])
		if err != nil {
			continue
		}
		decade := (year / 10) * 10
		buckets[decade] = append(buckets[decade], e)
	}

	decades := make([]int, 0, len(buckets))
	for d := range buckets {
		decades = append(decades, d)
	}
	sort.Ints(decades)

	groups := make([]decadeGroup, 0, len(decades))
	for _, d := range decades {
		groups = append(groups, decadeGroup{Decade: d, Events: buckets[d]})
	}
	return groups
}

func summaryPrompt(subject string, events []Event) (string, error) {
	groups := groupByDecade(events)
	span := "an unknown period"
	if len(groups) > 0 {
		span = fmt.Sprintf("%d to %d", groups[0].Decade, groups[len(groups)-1].Decade)
	}
	if len(groups) > decadePromptLimit {
		groups = groups[:decadePromptLimit]
	}
	payload, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal decade groups: %w", err)
	}

	return fmt.Sprintf(`You are analyzing a comprehensive timeline extracted from a wiki about %s.

Create a detailed summary organized chronologically, decade by decade.

For each period, provide:
- Key developments and turning points
- Important relationships and conflicts
- Major incidents and their impact
- How events shaped later developments

Write in an objective, encyclopedic style. Focus on factual documentation while showing how events connect and influence each other over time.

Timeline data (%d events):

%s

[Note: Full timeline has %d events spanning %s]

Generate a comprehensive, well-structured summary in markdown format.
Do NOT include a title or header at the beginning - start directly with the content.`,
		subject, len(events), payload, len(events), span), nil
}

// stripLeadingHeaders drops any markdown headers the model prepended
// despite instructions, along with the blank lines after them.
func stripLeadingHeaders(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for len(lines) > 0 && strings.HasPrefix(lines[0], "#") {
		lines = lines[1:]
		for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
			lines = lines[1:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func renderSummary(subject, body, sourceURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: A Comprehensive Summary\n\n", subject)
	b.WriteString(body)
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "*Source: %s*\n", sourceURL)
	return b.String()
}
