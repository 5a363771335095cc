package wiki

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/pipeline"
)

// Page is one fetched document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Fetcher retrieves pages. Implementations return typed errors so the
// retry policy can distinguish transient failures from permanent ones.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// CollyFetcher implements Fetcher on a shared colly collector.
type CollyFetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// FetcherConfig carries the HTTP knobs the collector needs.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// NewCollyFetcher builds the base collector once; each Fetch clones it
// so per-request callbacks never leak between requests.
func NewCollyFetcher(cfg FetcherConfig, logger *zap.Logger) *CollyFetcher {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollyFetcher{base: base, logger: logger}
}

type fetchResult struct {
	page Page
	err  error
}

// Fetch retrieves one page. Non-2xx statuses become HTTP-status errors
// so the caller's classifier decides which are worth retrying.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			send(fetchResult{err: pipeline.NewHTTPError("fetch", r.StatusCode)})
			return
		}
		send(fetchResult{err: pipeline.NewError(pipeline.KindConnection, "fetch", err)})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, pipeline.NewError(pipeline.KindConnection, "fetch", err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		return res.page, res.err
	default:
		return Page{}, pipeline.NewError(pipeline.KindBadResponse, "fetch", nil)
	}
}
