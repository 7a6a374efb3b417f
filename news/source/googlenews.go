package source

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/news/catalog"
	"github.com/m3rciful/newsbot/news/model"
	"github.com/m3rciful/newsbot/news/pipeline"
)

const (
	// DefaultBaseURL is the Google News RSS root.
	DefaultBaseURL  = "https://news.google.com/rss"
	defaultLanguage = "en"
	defaultTimeout  = 15 * time.Second
	maxBodySize     = 5 << 20
)

// Config configures the Google News client.
type Config struct {
	BaseURL  string        `yaml:"base_url" envconfig:"NEWS_BASE_URL"`
	Language string        `yaml:"language" envconfig:"NEWS_LANGUAGE"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"NEWS_TIMEOUT"`
}

// Observer receives fetch timings; the metrics collector implements it.
type Observer interface {
	ObserveFetch(kind string, took time.Duration, err error)
}

// GoogleNews reads the public Google News RSS endpoints.
type GoogleNews struct {
	cfg      Config
	client   *http.Client
	parser   *gofeed.Parser
	policy   *bluemonday.Policy
	observer Observer
	now      func() time.Time
}

// Option customises GoogleNews.
type Option func(*GoogleNews)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GoogleNews) {
		if c != nil {
			g.client = c
		}
	}
}

// WithObserver reports every fetch to o.
func WithObserver(o Observer) Option {
	return func(g *GoogleNews) { g.observer = o }
}

// WithClock overrides the clock used by the recency filter.
func WithClock(now func() time.Time) Option {
	return func(g *GoogleNews) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGoogleNews builds a client with defaults applied to zero config fields.
func NewGoogleNews(cfg Config, opts ...Option) *GoogleNews {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	g := &GoogleNews{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		parser: gofeed.NewParser(),
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TopNews returns the top stories for a country.
func (g *GoogleNews) TopNews(ctx context.Context, country string) ([]model.RawEntry, error) {
	return g.fetch(ctx, "top", g.TopNewsURL(country))
}

// TopicHeadlines returns the headlines of a topic feed, optionally limited to the last maxAgeDays.
func (g *GoogleNews) TopicHeadlines(ctx context.Context, hash, country string, maxAgeDays int) ([]model.RawEntry, error) {
	entries, err := g.fetch(ctx, "topic", g.TopicURL(hash, country))
	if err != nil {
		return nil, err
	}
	return pipeline.FilterRecent(entries, maxAgeDays, g.now()), nil
}

// Search runs a free-text query with Google News time operators.
func (g *GoogleNews) Search(ctx context.Context, query string, filter Filter) ([]model.RawEntry, error) {
	return g.fetch(ctx, "search", g.SearchURL(query, filter))
}

// TopNewsURL builds the feed URL for top stories.
func (g *GoogleNews) TopNewsURL(country string) string {
	return g.cfg.BaseURL + "?" + g.localeQuery(country)
}

// TopicURL builds the feed URL for a topic. Public topics use the section path,
// other hashes the topics path.
func (g *GoogleNews) TopicURL(hash, country string) string {
	hash = strings.TrimSpace(hash)
	path := "/topics/" + url.PathEscape(hash)
	if catalog.IsPublicTopicHash(hash) {
		path = "/headlines/section/topic/" + hash
	}
	return g.cfg.BaseURL + path + "?" + g.localeQuery(country)
}

// SearchURL builds the feed URL for a query.
func (g *GoogleNews) SearchURL(query string, filter Filter) string {
	q := strings.TrimSpace(query)
	if filter.When != "" {
		q += " when:" + filter.When
	} else {
		if filter.From != "" {
			q += " after:" + filter.From
		}
		if filter.To != "" {
			q += " before:" + filter.To
		}
	}
	return g.cfg.BaseURL + "/search?q=" + url.QueryEscape(q) + "&" + g.localeQuery(model.DefaultCountry)
}

func (g *GoogleNews) localeQuery(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = model.DefaultCountry
	}
	lang := g.cfg.Language
	v := url.Values{}
	v.Set("hl", lang+"-"+country)
	v.Set("gl", country)
	v.Set("ceid", country+":"+lang)
	return v.Encode()
}

func (g *GoogleNews) fetch(ctx context.Context, kind, feedURL string) (entries []model.RawEntry, err error) {
	start := time.Now()
	defer func() {
		took := time.Since(start)
		if g.observer != nil {
			g.observer.ObserveFetch(kind, took, err)
		}
		attrs := []slog.Attr{
			slog.String("op", kind),
			slog.String("url", feedURL),
			slog.Int("entries", len(entries)),
			slog.Duration("duration", took),
		}
		if err != nil {
			logger.Warn(ctx, logger.CompSource, "fetch", append(attrs,
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)...)
			return
		}
		logger.Debug(ctx, logger.CompSource, "fetch", append(attrs, slog.String("status", "ok"))...)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "newsbot/1.0 (+rss)")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	feed, err := g.parser.Parse(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return g.convert(feed.Items), nil
}

func (g *GoogleNews) convert(items []*gofeed.Item) []model.RawEntry {
	out := make([]model.RawEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		e := model.RawEntry{
			Title: g.cleanTitle(item.Title),
			Link:  strings.TrimSpace(item.Link),
		}
		switch {
		case item.PublishedParsed != nil:
			e.Published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			e.Published = item.UpdatedParsed.UTC()
		}
		if e.Title == "" || e.Link == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

// cleanTitle strips markup that occasionally leaks into feed titles.
func (g *GoogleNews) cleanTitle(title string) string {
	return strings.TrimSpace(html.UnescapeString(g.policy.Sanitize(title)))
}

func classifyTransport(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
