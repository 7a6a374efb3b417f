// Package render turns headlines into downloadable documents.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/m3rciful/newsbot/news/model"
)

const (
	// FormatPDF renders a PDF digest.
	FormatPDF = "pdf"
	// FormatXLSX renders a spreadsheet digest.
	FormatXLSX = "xlsx"

	filenameDateLayout = "02-01-2006"
)

// ErrRender wraps failures of the underlying document writers.
var ErrRender = errors.New("render failed")

// Document is a rendered artifact ready to upload.
type Document struct {
	Data     []byte
	Filename string
	MIME     string
}

// Renderer builds a document from ordered entries. descriptor names the file.
type Renderer interface {
	Render(entries []model.NewsEntry, title, descriptor string) (Document, error)
	Format() string
}

// New returns the renderer for format; an empty format selects PDF.
func New(format string, opts ...Option) (Renderer, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatPDF:
		return &PDF{now: o.now}, nil
	case FormatXLSX:
		return &XLSX{now: o.now}, nil
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
}

type options struct {
	now func() time.Time
}

// Option customises renderers built by New.
type Option func(*options)

// WithClock fixes the date used in filenames.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Filename builds "<DD-MM-YYYY>_<descriptor>_news.<ext>".
func Filename(date time.Time, descriptor, ext string) string {
	name := date.Format(filenameDateLayout)
	if d := sanitizeDescriptor(descriptor); d != "" {
		name += "_" + d
	}
	return name + "_news." + ext
}

// Descriptor joins the non-empty parts with underscores.
func Descriptor(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_")
}

func sanitizeDescriptor(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_.")
	if r := []rune(out); len(r) > 80 {
		out = string(r[:80])
	}
	return out
}
