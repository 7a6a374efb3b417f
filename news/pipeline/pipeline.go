// Package pipeline turns raw feed items into the ordered, de-duplicated headlines that get rendered.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/newsbot/news/model"
)

// DisplayDateLayout formats NewsEntry.Date.
const DisplayDateLayout = "02 Jan 2006"

// Options tunes Process.
type Options struct {
	// MaxAgeDays drops entries published more than N days before Now; 0 keeps everything.
	MaxAgeDays int
	Ascending  bool
	Now        time.Time
}

// Process filters, de-duplicates, sorts and projects entries.
func Process(entries []model.RawEntry, opts Options) []model.NewsEntry {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	kept := FilterRecent(entries, opts.MaxAgeDays, now)
	kept = Dedupe(kept)
	SortByPublished(kept, opts.Ascending)
	return Project(kept)
}

// FilterRecent keeps entries published within days of now. days <= 0 disables the filter.
func FilterRecent(entries []model.RawEntry, days int, now time.Time) []model.RawEntry {
	if days <= 0 {
		return append([]model.RawEntry(nil), entries...)
	}
	maxAge := time.Duration(days) * 24 * time.Hour
	out := make([]model.RawEntry, 0, len(entries))
	for _, e := range entries {
		if now.Sub(e.Published) <= maxAge {
			out = append(out, e)
		}
	}
	return out
}

// NormalizeTitle strips the trailing " - Publisher" part used by aggregated feeds.
func NormalizeTitle(title string) string {
	idx := strings.LastIndex(title, "-")
	if idx < 0 {
		return title
	}
	return strings.TrimSpace(title[:idx])
}

// Dedupe keeps the first entry for every normalized title.
func Dedupe(entries []model.RawEntry) []model.RawEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]model.RawEntry, 0, len(entries))
	for _, e := range entries {
		key := NormalizeTitle(e.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// SortByPublished orders entries in place, newest first unless ascending.
func SortByPublished(entries []model.RawEntry, ascending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Published.Before(entries[j].Published)
		}
		return entries[i].Published.After(entries[j].Published)
	})
}

// Project converts raw entries into display entries. Undated entries get an empty Date.
func Project(entries []model.RawEntry) []model.NewsEntry {
	out := make([]model.NewsEntry, len(entries))
	for i, e := range entries {
		out[i] = model.NewsEntry{Title: e.Title, Link: e.Link}
		if !e.Published.IsZero() {
			out[i].Date = e.Published.Format(DisplayDateLayout)
		}
	}
	return out
}
