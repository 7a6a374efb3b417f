// Package source retrieves headlines from Google News RSS feeds.
package source

import (
	"context"
	"errors"

	"github.com/m3rciful/newsbot/news/model"
)

var (
	// ErrUnavailable reports that the feed could not be reached or answered with an error status.
	ErrUnavailable = errors.New("news source unavailable")
	// ErrMalformed reports a response that is not a parseable feed.
	ErrMalformed = errors.New("malformed news feed")
	// ErrTimeout reports a feed request that exceeded its deadline.
	ErrTimeout = errors.New("news source timeout")
)

// Filter narrows a search in time. When takes precedence over From/To.
type Filter struct {
	When string
	From string
	To   string
}

// Source fetches raw feed entries.
type Source interface {
	TopNews(ctx context.Context, country string) ([]model.RawEntry, error)
	TopicHeadlines(ctx context.Context, hash, country string, maxAgeDays int) ([]model.RawEntry, error)
	Search(ctx context.Context, query string, filter Filter) ([]model.RawEntry, error)
}
