// Package media walks the stored raw page artifacts, downloads the
// images they reference, and maintains the canonical media index under
// the never-regress rule.
package media

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/checkpoint"
	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
	"github.com/chronicleworks/wikichron/internal/scrape"
	"github.com/chronicleworks/wikichron/internal/storage"
	"github.com/chronicleworks/wikichron/internal/wiki"
)

const (
	// CheckpointKey names the media extraction checkpoint document.
	CheckpointKey = "media_extraction_checkpoint"
	// IndexPath is the canonical media index artifact.
	IndexPath = "media/media_index.json"
	// ImagesPrefix is where downloaded images land.
	ImagesPrefix = "media/images/"
)

const stateVersion = 1

// ImageRecord is one image with its download location.
type ImageRecord struct {
	wiki.Image
	LocalPath string `json:"local_path,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// PageMedia collects the media found on one page.
type PageMedia struct {
	PageTitle    string        `json:"page_title"`
	PageURL      string        `json:"page_url"`
	SafeFilename string        `json:"safe_filename"`
	Images       []ImageRecord `json:"images"`
	Videos       []wiki.Video  `json:"videos"`
}

// Index is the canonical media artifact.
type Index struct {
	TotalPages       int         `json:"total_pages"`
	TotalImages      int         `json:"total_images"`
	DownloadedImages int         `json:"downloaded_images"`
	SkippedImages    int         `json:"skipped_images"`
	TotalVideos      int         `json:"total_videos"`
	ExtractedAt      time.Time   `json:"extracted_at"`
	Pages            []PageMedia `json:"pages"`
}

/// Counts implements checkpoint.Countable: pages indexed, and pages
// that actually carry media.
func (i Index) Counts() checkpoint.Counts {
	nonEmpty := 0
	for _, p := range i.Pages {
		if len(p.Images) > 0 || len(p.Videos) > 0 {
			nonEmpty++
		}
	}
	return checkpoint.Counts{Items: len(i.Pages), NonEmpty: nonEmpty}
}

// State is the persisted extraction progress.
type State struct {
	Version          int         `json:"version"`
	Pages            []PageMedia `json:"media_index"`
	Processed        []string    `json:"processed_files"`
	TotalImages      int         `json:"total_images"`
	TotalVideos      int         `json:"total_videos"`
	DownloadedImages int         `json:"downloaded_images"`
	SkippedImages    int         `json:"skipped_images"`
	UpdatedAt        time.Time   `json:"last_updated"`
}

// Report is the completion signal of an extraction run.
type Report struct {
	Pages            int
	DownloadedImages int
	SkippedImages    int
	Videos           int
	Complete         bool
	SkippedPhase     bool
}

// Config bounds the extraction loop.
type Config struct {
	MaxImageBytes   int64
	Delay           time.Duration
	CheckpointEvery int
}

// Extractor drives the media extraction phase.
type Extractor struct {
	blobs     storage.BlobStore
	artifacts checkpoint.Store
	ckpts     checkpoint.Store
	fetcher   wiki.Fetcher
	retry     *pipeline.RetryPolicy
	cfg       Config
	logger    *zap.Logger
}

// New builds an Extractor. artifacts guards the canonical index in the
// blob store; ckpts holds the progress checkpoint.
func New(blobs storage.BlobStore, ckpts checkpoint.Store, fetcher wiki.Fetcher, retry *pipeline.RetryPolicy, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		blobs:     blobs,
		artifacts: checkpoint.NewBlobStore(blobs, logger),
		ckpts:     ckpts,
		fetcher:   fetcher,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes every raw page artifact not yet covered by the
// checkpoint. If the existing canonical index already covers all pages
// the phase is skipped entirely.
func (e *Extractor) Run(ctx context.Context) (Report, error) {
	started := time.Now()

	files, err := e.blobs.List(ctx, scrape.RawJSONPrefix)
	if err != nil {
		return Report{}, fmt.Errorf("list raw pages: %w", err)
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("no raw page artifacts found; run the scrape phase first")
	}

	if report, done := e.alreadyComplete(ctx, len(files)); done {
		return report, nil
	}

	state := e.loadState(ctx)
	processed := make(map[string]bool, len(state.Processed))
	for _, f := range state.Processed {
		processed[f] = true
	}

	var remaining []string
	for _, f := range files {
		if !processed[path.Base(f)] {
			remaining = append(remaining, f)
		}
	}
	e.logger.Info("media extraction plan",
		zap.Int("total", len(files)),
		zap.Int("already_processed", len(processed)),
		zap.Int("remaining", len(remaining)),
	)

	sinceCheckpoint := 0
	for _, file := range remaining {
		if err := ctx.Err(); err != nil {
			e.saveState(ctx, &state, processed)
			return Report{}, err
		}

		if e.cfg.Delay > 0 {
			pipeline.Pause(ctx, e.cfg.Delay)
		}

		if err := e.processPage(ctx, file, &state); err != nil {
			// A page that cannot be processed is logged and passed
			// over; it stays out of Processed so a later run retries.
			e.logger.Error("media extraction failed for page",
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}
		processed[path.Base(file)] = true
		sinceCheckpoint++

		if sinceCheckpoint >= e.cfg.CheckpointEvery {
			e.saveState(ctx, &state, processed)
			sinceCheckpoint = 0
		}
	}

	e.saveState(ctx, &state, processed)

	index := Index{
		TotalPages:       len(state.Pages),
		TotalImages:      state.TotalImages,
		DownloadedImages: state.DownloadedImages,
		SkippedImages:    state.SkippedImages,
		TotalVideos:      state.TotalVideos,
		ExtractedAt:      time.Now().UTC(),
		Pages:            state.Pages,
	}
	if len(index.Pages) > 0 {
		accepted, err := checkpoint.Finalize(ctx, e.artifacts, IndexPath, index, e.logger)
		if err != nil {
			return Report{}, fmt.Errorf("finalize media index: %w", err)
		}
		if !accepted {
			e.logger.Warn("media index not overwritten, existing artifact is more complete")
		}
	}

	metrics.ObservePhase("media", time.Since(started))
	report := Report{
		Pages:            len(state.Pages),
		DownloadedImages: state.DownloadedImages,
		SkippedImages:    state.SkippedImages,
		Videos:           state.TotalVideos,
		Complete:         len(processed) == len(files),
	}
	e.logger.Info("media extraction complete",
		zap.Int("pages", report.Pages),
		zap.Int("downloaded_images", report.DownloadedImages),
		zap.Int("skipped_images", report.SkippedImages),
		zap.Int("videos", report.Videos),
		zap.Bool("complete", report.Complete),
	)
	return report, nil
}

// alreadyComplete reports whether the existing canonical index covers
// every raw page, in which case the run is skipped.
func (e *Extractor) alreadyComplete(ctx context.Context, expected int) (Report, bool) {
	var existing Index
	found, err := e.artifacts.Load(ctx, IndexPath, &existing)
	if err != nil || !found {
		return Report{}, false
	}
	if len(existing.Pages) == expected && expected > 0 && existing.DownloadedImages > 0 {
		e.logger.Info("media extraction already complete, skipping",
			zap.Int("pages", len(existing.Pages)),
			zap.Int("images", existing.DownloadedImages),
		)
		return Report{
			Pages:            len(existing.Pages),
			DownloadedImages: existing.DownloadedImages,
			SkippedImages:    existing.SkippedImages,
			Videos:           existing.TotalVideos,
			Complete:         true,
			SkippedPhase:     true,
		}, true
	}
	return Report{}, false
}

func (e *Extractor) processPage(ctx context.Context, file string, state *State) error {
	data, err := e.blobs.Get(ctx, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	var doc wiki.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", file, err)
	}

	stem := strings.TrimSuffix(path.Base(file), ".json")
	images, videos, err := wiki.ExtractMedia(doc.URL, doc.ContentHTML)
	if err != nil {
		return err
	}
	state.TotalImages += len(images)
	state.TotalVideos += len(videos)

	pageImages := make([]ImageRecord, 0, len(images))
	for idx, img := range images {
		record := ImageRecord{
			Image:    img,
			Filename: imageFilename(stem, idx, img.URL),
		}
		objectPath := ImagesPrefix + record.Filename

		exists, err := e.blobs.Exists(ctx, objectPath)
		if err != nil {
			return err
		}
		switch {
		case exists:
			state.DownloadedImages++
			metrics.ObserveImage("cached")
		case e.downloadImage(ctx, img.URL, objectPath):
			state.DownloadedImages++
			metrics.ObserveImage("downloaded")
		default:
			state.SkippedImages++
			metrics.ObserveImage("skipped")
			record.Filename = ""
		}
		if record.Filename != "" {
			record.LocalPath = objectPath
		}
		pageImages = append(pageImages, record)
	}

	state.Pages = append(state.Pages, PageMedia{
		PageTitle:    doc.Title,
		PageURL:      doc.URL,
		SafeFilename: stem,
		Images:       pageImages,
		Videos:       videos,
	})
	return nil
}

// downloadImage fetches one image, honoring the size cap. Failures are
// skips, not phase errors.
func (e *Extractor) downloadImage(ctx context.Context, imgURL, objectPath string) bool {
	page, err := pipeline.Attempt(ctx, e.retry, func(ctx context.Context) (wiki.Page, error) {
		return e.fetcher.Fetch(ctx, imgURL)
	})
	if err != nil {
		e.logger.Debug("image download failed", zap.String("url", imgURL), zap.Error(err))
		return false
	}
	if e.cfg.MaxImageBytes > 0 && int64(len(page.Body)) > e.cfg.MaxImageBytes {
		e.logger.Debug("skipping oversized image",
			zap.String("url", imgURL),
			zap.Int("bytes", len(page.Body)),
		)
		return false
	}
	if _, err := e.blobs.Put(ctx, objectPath, "", bytes.NewReader(page.Body)); err != nil {
		e.logger.Warn("failed to store image", zap.String("url", imgURL), zap.Error(err))
		return false
	}
	return true
}

// imageFilename builds a stable unique name from the page stem, the
// image's position, and a short hash of its URL.
func imageFilename(stem string, idx int, imgURL string) string {
	sum := md5.Sum([]byte(imgURL))
	hash := fmt.Sprintf("%x", sum)[:12]
	ext := ".jpg"
	if u, err := url.Parse(imgURL); err == nil {
		if e := path.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return fmt.Sprintf("%s_%d_%s%s", stem, idx, hash, ext)
}

func (e *Extractor) loadState(ctx context.Context) State {
	var state State
	found, err := e.ckpts.Load(ctx, CheckpointKey, &state)
	if err != nil {
		e.logger.Warn("media checkpoint unavailable, starting fresh", zap.Error(err))
		found = false
	}
	if found && state.Version != stateVersion {
		e.logger.Warn("media checkpoint schema mismatch, starting fresh",
			zap.Int("have", state.Version),
			zap.Int("want", stateVersion),
		)
		found = false
	}
	if !found {
		state = State{}
	}
	state.Version = stateVersion
	if found {
		e.logger.Info("resuming media extraction",
			zap.Int("processed", len(state.Processed)),
			zap.Int("downloaded_images", state.DownloadedImages),
		)
	}
	return state
}

func (e *Extractor) saveState(ctx context.Context, state *State, processed map[string]bool) {
	state.Processed = state.Processed[:0]
	for f := range processed {
		state.Processed = append(state.Processed, f)
	}
	state.UpdatedAt = time.Now().UTC()

	if err := e.ckpts.Save(ctx, CheckpointKey, state); err != nil {
		e.logger.Error("failed to save media checkpoint", zap.Error(err))
		return
	}
	metrics.ObserveCheckpointSave(CheckpointKey)
	e.logger.Info("media checkpoint saved",
		zap.Int("pages", len(state.Pages)),
		zap.Int("downloaded_images", state.DownloadedImages),
	)
}
