// Package flights prices single flight legs against the SerpAPI
// google_flights engine.
package flights

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/commute-matrix/config"
	"github.com/aluiziolira/commute-matrix/models"
	"github.com/aluiziolira/commute-matrix/parser"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Client issues provider searches through a synchronous colly collector.
// It is not safe for concurrent use; the matrix scan is strictly serial.
type Client struct {
	cfg       *config.Config
	searchURL *url.URL
	collector *colly.Collector
	limiter   *rate.Limiter
	cache     *lru.Cache[string, Quote]
	Metrics   *Metrics

	stats Stats
}

// Stats summarises the lookups made by a Client.
type Stats struct {
	Lookups      int
	Failed       int
	CacheHits    int
	Retries      int
	Requests     int
	ErrorsByType map[string]int
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("search url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	c := &Client{
		cfg:       cfg,
		searchURL: parsed,
		collector: collector,
		Metrics:   NewMetrics(),
		stats:     Stats{ErrorsByType: make(map[string]int)},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, Quote](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create quote cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Lookup prices one leg and never fails: any error is carried in the
// Result, whose Price falls back to SentinelPrice.
func (c *Client) Lookup(ctx context.Context, q Query) Result {
	c.stats.Lookups++
	quote, err := c.Search(ctx, q)
	if err != nil {
		category := errorTypeLabel(err)
		c.stats.Failed++
		c.stats.ErrorsByType[category]++
		c.Metrics.IncLookup("failed")
		c.Metrics.IncError(category)
		slog.Warn("price lookup failed",
			slog.String("origin", q.Origin),
			slog.String("destination", q.Destination),
			slog.String("date", q.Date.Format(models.DateLayout)),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return Result{Query: q, Err: err}
	}
	c.Metrics.IncLookup("priced")
	return Result{Query: q, Quote: quote}
}

// Search prices one leg, retrying transient failures up to MaxRetries.
func (c *Client) Search(ctx context.Context, q Query) (Quote, error) {
	if err := q.validate(); err != nil {
		return Quote{}, err
	}
	if c.cache != nil {
		if quote, ok := c.cache.Get(q.key()); ok {
			c.stats.CacheHits++
			c.Metrics.IncCacheHit()
			return quote, nil
		}
	}

	target := c.requestURL(q)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.stats.Retries++
			c.Metrics.IncRetries()
			if err := sleepContext(ctx, c.backoff(attempt)); err != nil {
				return Quote{}, ErrTimeout{Err: err}
			}
		}

		quote, err := c.searchOnce(ctx, q, target)
		if err == nil {
			if c.cache != nil {
				c.cache.Add(q.key(), quote)
			}
			return quote, nil
		}
		if !retryable(err) || attempt >= c.cfg.MaxRetries {
			return Quote{}, err
		}
		slog.Debug("retrying price lookup",
			slog.String("origin", q.Origin),
			slog.String("destination", q.Destination),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
}

// Stats returns a snapshot of the lookup counters.
func (c *Client) Stats() Stats {
	out := c.stats
	out.ErrorsByType = make(map[string]int, len(c.stats.ErrorsByType))
	for k, v := range c.stats.ErrorsByType {
		out.ErrorsByType[k] = v
	}
	return out
}

func (c *Client) searchOnce(ctx context.Context, q Query, target string) (Quote, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Quote{}, ErrTimeout{Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return Quote{}, ErrTimeout{Err: err}
	}

	c.stats.Requests++
	c.Metrics.IncRequest("started")
	start := time.Now()
	body, status, err := c.fetch(target)
	c.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		c.Metrics.IncRequest("failed")
		return Quote{}, classifyError(err, status)
	}
	c.Metrics.IncRequest("completed")

	offer, err := parser.ParseBestFlight(body)
	if err != nil {
		return Quote{}, classifyParseError(err)
	}
	quote := Quote{
		Price:   offer.Price,
		Carrier: offer.Airline,
		Link:    BookingLink(q),
	}
	if !offer.HasPrice {
		quote.Price = SentinelPrice
	}
	return quote, nil
}

// fetch runs one GET on a clone of the collector so the callbacks only
// see this request. Clones share the HTTP backend.
func (c *Client) fetch(target string) ([]byte, int, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)

	collector := c.collector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := collector.Visit(target); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr == nil && status >= http.StatusBadRequest {
		fetchErr = fmt.Errorf("http status %d", status)
	}
	return body, status, fetchErr
}

func (c *Client) requestURL(q Query) string {
	u := *c.searchURL
	params := u.Query()
	params.Set("engine", "google_flights")
	params.Set("api_key", c.cfg.SerpAPIKey)
	params.Set("departure_id", q.Origin)
	params.Set("arrival_id", q.Destination)
	params.Set("outbound_date", q.Date.Format(models.DateLayout))
	params.Set("currency", c.cfg.Currency)
	params.Set("hl", c.cfg.Locale)
	params.Set("type", "2")
	if q.TimeWindow != "" {
		params.Set("departure_time", q.TimeWindow)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
