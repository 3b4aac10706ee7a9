// Package collyfetcher implements the bulletin Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

const cacheKey = "bulletin:latest"

// Config controls collector behavior.
type Config struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// Fetcher implements monitor.Fetcher against the PHIVOLCS bulletin page.
// A successful fetch is cached for Config.CacheTTL so the poller and the
// on-demand API endpoint don't hammer the source.
type Fetcher struct {
	cfg           Config
	cache         monitor.Cache
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config, cache monitor.Cache, logger *zap.Logger) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Fetcher{
		cfg:           cfg,
		cache:         cache,
		logger:        logger,
		baseCollector: c,
	}
}

// Fetch returns the latest bulletin, from cache when the last successful
// fetch is younger than the cache TTL.
func (f *Fetcher) Fetch(ctx context.Context) (monitor.Bulletin, error) {
	if cached, ok := f.cache.Get(ctx, cacheKey); ok {
		var b monitor.Bulletin
		if err := json.Unmarshal([]byte(cached), &b); err == nil {
			f.logger.Debug("bulletin served from cache")
			telemetry.ObserveBulletinFetch("cached")
			return b, nil
		}
		// Corrupt cache entry; fall through to a real fetch.
	}

	var (
		bulletin monitor.Bulletin
		found    bool
		fetchErr error
	)
	collector := f.buildCollector(&bulletin, &found, &fetchErr)

	if err := f.runCollector(ctx, collector, &fetchErr); err != nil {
		telemetry.ObserveBulletinFetch("error")
		return monitor.Bulletin{}, err
	}
	if !found {
		telemetry.ObserveBulletinFetch("no_bulletin")
		return monitor.Bulletin{}, errors.New("no structurally valid bulletin row found")
	}

	telemetry.ObserveBulletinFetch("success")
	if payload, err := json.Marshal(bulletin); err == nil {
		f.cache.Set(ctx, cacheKey, string(payload), f.cfg.CacheTTL)
	}
	return bulletin, nil
}

func (f *Fetcher) buildCollector(bulletin *monitor.Bulletin, found *bool, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Connection", "keep-alive")
	})

	// First structurally valid row wins; later tables are ignored.
	collector.OnHTML("table.MsoNormalTable", func(e *colly.HTMLElement) {
		if *found {
			return
		}
		b, ok := f.parseTable(e)
		if !ok {
			return
		}
		*bulletin = b
		*found = true
	})

	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})

	return collector
}

// parseTable extracts the six bulletin cells from the second row of a
// candidate table: datetime, latitude, longitude, depth, magnitude, location.
func (f *Fetcher) parseTable(e *colly.HTMLElement) (monitor.Bulletin, bool) {
	rows := e.DOM.Find("tr")
	if rows.Length() < 2 {
		return monitor.Bulletin{}, false
	}
	cells := rows.Eq(1).Find("td")
	if cells.Length() != 6 {
		return monitor.Bulletin{}, false
	}

	dateCell := cells.Eq(0)
	b := monitor.Bulletin{
		Latitude:  strings.TrimSpace(cells.Eq(1).Text()),
		Longitude: strings.TrimSpace(cells.Eq(2).Text()),
		Depth:     strings.TrimSpace(cells.Eq(3).Text()),
		Magnitude: strings.TrimSpace(cells.Eq(4).Text()),
		Location:  strings.TrimSpace(cells.Eq(5).Text()),
	}

	anchor := dateCell.Find("a").First()
	if anchor.Length() > 0 {
		b.DateTime = strings.TrimSpace(anchor.Text())
		b.DetailLink = f.detailLink(e, anchor)
	} else {
		b.DateTime = strings.TrimSpace(dateCell.Text())
	}
	if b.DateTime == "" {
		return monitor.Bulletin{}, false
	}
	return b, true
}

// detailLink resolves the bulletin anchor against the page URL. The source
// publishes Windows-style hrefs, so backslashes become forward slashes first.
func (f *Fetcher) detailLink(e *colly.HTMLElement, anchor *goquery.Selection) string {
	href, ok := anchor.Attr("href")
	if !ok {
		return ""
	}
	return e.Request.AbsoluteURL(strings.ReplaceAll(href, `\`, "/"))
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(f.cfg.URL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("bulletin fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("bulletin visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("bulletin response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
