// Package scrape fetches every discovered article and persists its
// structured JSON and clean-text artifacts, skipping pages that already
// exist so interrupted runs resume where they left off.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/storage"
	"github.com/chronicleworks/wikichron/internal/wiki"
)

// Artifact paths relative to the blob store root.
const (
	PageTitlesPath  = "page_titles.json"
	RawJSONPrefix   = "raw_json/"
	CleanTextPrefix = "clean_text/"
	SummaryPath     = "scrape_summary.json"
)

const header = "================================================================================"

// PageTitles is the canonical list of discovered pages.
type PageTitles struct {
	TotalPages int         `json:"total_pages"`
	Pages      []PageTitle `json:"pages"`
}

// PageTitle is one entry in the page list.
type PageTitle struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// FailedPage records a page the phase could not scrape.
type FailedPage struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Report is the completion signal of a scrape run.
type Report struct {
	Total     int          `json:"total"`
	Scraped   int          `json:"scraped"`
	Skipped   int          `json:"skipped"`
	Failed    []FailedPage `json:"failed"`
	Complete  bool         `json:"complete"`
	ScrapedAt time.Time    `json:"scraped_at"`
}

// Config bounds the scrape loop.
type Config struct {
	Delay time.Duration
}

// Scraper drives the page-fetch phase.
type Scraper struct {
	site    wiki.Site
	fetcher wiki.Fetcher
	store   storage.BlobStore
	retry   *pipeline.RetryPolicy
	cfg     Config
	logger  *zap.Logger
}

// New builds a Scraper.
func New(site wiki.Site, fetcher wiki.Fetcher, store storage.BlobStore, retry *pipeline.RetryPolicy, cfg Config, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		site:    site,
		fetcher: fetcher,
		store:   store,
		retry:   retry,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run scrapes every page in pages (URL to title) that does not already
// have a clean-text artifact. Per-page failures never abort the phase;
// they degrade the completeness signal in the returned Report.
func (s *Scraper) Run(ctx context.Context, pages map[string]string) (Report, error) {
	started := time.Now()
	report := Report{Total: len(pages)}

	urls := make([]string, 0, len(pages))
	for url := range pages {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	if err := s.savePageTitles(ctx, urls, pages); err != nil {
		return report, err
	}

	existing, err := s.existingStems(ctx)
	if err != nil {
		return report, err
	}

	var todo []string
	for _, url := range urls {
		stem := wiki.SafeFilename(pages[url])
		if existing[stem] {
			report.Skipped++
			continue
		}
		todo = append(todo, url)
	}
	s.logger.Info("scrape plan",
		zap.Int("total", len(urls)),
		zap.Int("skipped", report.Skipped),
		zap.Int("to_scrape", len(todo)),
	)

	for _, url := range todo {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := s.scrapePage(ctx, url); err != nil {
			s.logger.Warn("page scrape failed", zap.String("url", url), zap.Error(err))
			metrics.ObservePageScraped("failed")
			report.Failed = append(report.Failed, FailedPage{URL: url, Error: err.Error()})
			continue
		}
		metrics.ObservePageScraped("ok")
		report.Scraped++

		if s.cfg.Delay > 0 {
			pipeline.Pause(ctx, s.cfg.Delay)
		}
	}

	report.Complete = len(report.Failed) == 0
	report.ScrapedAt = time.Now().UTC()
	if err := s.saveSummary(ctx, report); err != nil {
		return report, err
	}

	metrics.ObservePhase("scrape", time.Since(started))
	s.logger.Info("scrape complete",
		zap.Int("scraped", report.Scraped),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *Scraper) scrapePage(ctx context.Context, url string) error {
	started := time.Now()
	page, err := pipeline.Attempt(ctx, s.retry, func(ctx context.Context) (wiki.Page, error) {
		return s.fetcher.Fetch(ctx, url)
	})
	if err != nil {
		return err
	}
	metrics.ObserveFetch(page.StatusCode, time.Since(started))

	doc, err := wiki.ParseDocument(s.site, url, page.Body)
	if err != nil {
		return err
	}
	if doc.Title == "" {
		return fmt.Errorf("page has no title heading")
	}

	stem := wiki.SafeFilename(doc.Title)
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if _, err := s.store.Put(ctx, RawJSONPrefix+stem+".json", "application/json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write raw json: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Title: %s\n", doc.Title)
	fmt.Fprintf(&text, "URL: %s\n", doc.URL)
	fmt.Fprintf(&text, "Categories: %s\n", strings.Join(doc.Categories, ", "))
	fmt.Fprintf(&text, "%s\n\n", header)
	text.WriteString(wiki.CleanText(doc.ContentHTML))

	if _, err := s.store.Put(ctx, CleanTextPrefix+stem+".txt", "text/plain", strings.NewReader(text.String())); err != nil {
		return fmt.Errorf("write clean text: %w", err)
	}
	return nil
}

// existingStems lists the clean-text stems already on disk; their pages
// are skipped so a resumed run only fetches what is missing.
func (s *Scraper) existingStems(ctx context.Context) (map[string]bool, error) {
	paths, err := s.store.List(ctx, CleanTextPrefix)
	if err != nil {
		return nil, fmt.Errorf("list scraped pages: %w", err)
	}
	stems := make(map[string]bool, len(paths))
	for _, p := range paths {
		name := strings.TrimPrefix(p, CleanTextPrefix)
		stems[strings.TrimSuffix(name, ".txt")] = true
	}
	return stems, nil
}

func (s *Scraper) savePageTitles(ctx context.Context, urls []string, pages map[string]string) error {
	doc := PageTitles{TotalPages: len(urls)}
	for _, url := range urls {
		doc.Pages = append(doc.Pages, PageTitle{URL: url, Title: pages[url]})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page titles: %w", err)
	}
	if _, err := s.store.Put(ctx, PageTitlesPath, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write page titles: %w", err)
	}
	return nil
}

func (s *Scraper) saveSummary(ctx context.Context, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scrape summary: %w", err)
	}
	if _, err := s.store.Put(ctx, SummaryPath, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write scrape summary: %w", err)
	}
	return nil
}
