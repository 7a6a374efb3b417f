package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/news/events"
	"github.com/m3rciful/newsbot/news/model"
	"github.com/m3rciful/newsbot/news/pipeline"
	"github.com/m3rciful/newsbot/news/render"
	"github.com/m3rciful/newsbot/news/source"
)

// delivery is one fetch, render and upload round.
type delivery struct {
	kind       string
	label      string
	title      string
	descriptor string
	maxAgeDays int
	fetch      func(ctx context.Context) ([]model.RawEntry, error)
}

// deliver fetches, renders and sends one document. An empty result becomes a notice.
func (e *Engine) deliver(ctx context.Context, sc *Scope, d delivery) error {
	if err := sc.SayWith(ctx, fmt.Sprintf("Fetching %s news...", d.label), Markup{Remove: true}); err != nil {
		return err
	}
	raw, err := d.fetch(ctx)
	if err != nil {
		return sourceError(err)
	}
	entries := pipeline.Process(raw, pipeline.Options{MaxAgeDays: d.maxAgeDays, Now: e.now()})
	if len(entries) == 0 {
		return sc.Say(ctx, fmt.Sprintf("No news found for %s.", d.label))
	}

	if err := sc.Say(ctx, fmt.Sprintf("Converting to %s...", strings.ToUpper(e.renderer.Format()))); err != nil {
		return err
	}
	doc, err := e.renderer.Render(entries, d.title, d.descriptor)
	if err != nil {
		if !errors.Is(err, render.ErrRender) {
			err = fmt.Errorf("%w: %w", render.ErrRender, err)
		}
		return err
	}
	if err := sc.SendDocument(ctx, doc); err != nil {
		return err
	}
	e.metrics.DocumentSent(e.renderer.Format())
	logger.Info(ctx, logger.CompConv, "conv.document",
		slog.String("kind", d.kind),
		slog.String("filename", doc.Filename),
		slog.Int("entries", len(entries)),
	)

	pubErr := e.publisher.Publish(ctx, events.Delivery{
		UserID:     sc.UserID.String(),
		Kind:       d.kind,
		Descriptor: d.descriptor,
		Entries:    len(entries),
		Format:     e.renderer.Format(),
		SentAt:     e.now().UTC(),
	})
	if pubErr != nil {
		logger.Warn(ctx, logger.CompEvents, "events.delivery",
			slog.String("status", "fail"),
			slog.String("err", pubErr.Error()),
		)
	}
	return nil
}

func sourceError(err error) error {
	switch {
	case errors.Is(err, source.ErrTimeout), errors.Is(err, source.ErrUnavailable), errors.Is(err, source.ErrMalformed):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", source.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", source.ErrUnavailable, err)
	}
}

func (e *Engine) topDelivery(country string) delivery {
	return delivery{
		kind:       "top",
		label:      "top",
		title:      fmt.Sprintf("Top News (%s)", country),
		descriptor: render.Descriptor(country, "top"),
		fetch: func(ctx context.Context) ([]model.RawEntry, error) {
			return e.source.TopNews(ctx, country)
		},
	}
}

func (e *Engine) topicDelivery(name, hash, country string, days int) delivery {
	window := ""
	if days > 0 {
		window = fmt.Sprintf("%dd", days)
	}
	return delivery{
		kind:       "topic",
		label:      fmt.Sprintf("'%s'", name),
		title:      fmt.Sprintf("%s News (%s)", name, country),
		descriptor: render.Descriptor(name, country, window),
		maxAgeDays: days,
		fetch: func(ctx context.Context) ([]model.RawEntry, error) {
			return e.source.TopicHeadlines(ctx, hash, country, days)
		},
	}
}

func (e *Engine) queryDelivery(query string, filter source.Filter) delivery {
	window := filter.When
	if window == "" && filter.From != "" {
		window = filter.From + "_to_" + filter.To
	}
	return delivery{
		kind:       "query",
		label:      fmt.Sprintf("'%s'", query),
		title:      fmt.Sprintf("'%s' News", query),
		descriptor: render.Descriptor(query, window),
		fetch: func(ctx context.Context) ([]model.RawEntry, error) {
			return e.source.Search(ctx, query, filter)
		},
	}
}

// listing helpers shared by the edit flows and the display commands

func (e *Engine) sayTopics(ctx context.Context, sc *Scope) error {
	topics, err := e.repo.ListTopics(ctx, sc.UserID)
	if err != nil {
		return err
	}
	return sc.Say(ctx, formatTopics(topics))
}

func (e *Engine) sayQueries(ctx context.Context, sc *Scope) error {
	queries, err := e.repo.ListQueries(ctx, sc.UserID)
	if err != nil {
		return err
	}
	return sc.Say(ctx, formatQueries(queries))
}

func formatTopics(topics []model.TopicPreference) string {
	if len(topics) == 0 {
		return "You don't have any saved topics."
	}
	var b strings.Builder
	b.WriteString("Here are your saved topics:")
	for i, t := range topics {
		fmt.Fprintf(&b, "\n%d. %s (%s) - %s", i+1, t.TopicName, t.CountryCode, t.TopicHash)
	}
	return b.String()
}

func formatQueries(queries []model.UserQuery) string {
	if len(queries) == 0 {
		return "You don't have any saved queries."
	}
	var b strings.Builder
	b.WriteString("Here are your saved queries:")
	for i, q := range queries {
		fmt.Fprintf(&b, "\n%d. %s", i+1, q.Query)
	}
	return b.String()
}

func topicButtons(topics []model.TopicPreference) []Button {
	out := make([]Button, 0, len(topics))
	for _, t := range topics {
		out = append(out, Button{Text: fmt.Sprintf("%s (%s)", t.TopicName, t.CountryCode), Data: t.ID.String()})
	}
	return out
}

func queryButtons(queries []model.UserQuery) []Button {
	out := make([]Button, 0, len(queries))
	for _, q := range queries {
		out = append(out, Button{Text: shorten(q.Query, 48), Data: q.ID.String()})
	}
	return out
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

var yesNo = []Button{{Text: "Yes", Data: "yes"}, {Text: "No", Data: "no"}}

func isYes(s string) bool { return strings.EqualFold(strings.TrimSpace(s), "yes") }
