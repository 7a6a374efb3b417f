package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const replyStatsKey = "reply_stats"

// ReplyStats counts what a handler sent back. Sends may complete on sender
// workers, so fields are atomic.
type ReplyStats struct {
	messages  atomic.Int32
	documents atomic.Int32
	keyboard  atomic.Bool
}

// Messages returns the number of text messages and edits sent.
func (s *ReplyStats) Messages() int { return int(s.messages.Load()) }

// Documents returns the number of files sent.
func (s *ReplyStats) Documents() int { return int(s.documents.Load()) }

// Keyboard reports whether any reply carried reply markup.
func (s *ReplyStats) Keyboard() bool { return s.keyboard.Load() }

func (s *ReplyStats) record(what any, opts []any) {
	switch what.(type) {
	case *tele.Document, tele.Document:
		s.documents.Add(1)
	default:
		s.messages.Add(1)
	}
	if hasKeyboard(opts) {
		s.keyboard.Store(true)
	}
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// statsContext wraps tele.Context and records successful replies.
type statsContext struct {
	tele.Context
	stats *ReplyStats
}

func (m statsContext) Send(what any, opts ...any) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.stats.record(what, opts)
	}
	return err
}

func (m statsContext) Reply(what any, opts ...any) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.stats.record(what, opts)
	}
	return err
}

func (m statsContext) Edit(what any, opts ...any) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.stats.record(what, opts)
	}
	return err
}

func (m statsContext) EditOrSend(what any, opts ...any) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.stats.record(what, opts)
	}
	return err
}

// MessageMetricsMiddleware attaches fresh ReplyStats to every update.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		stats := &ReplyStats{}
		c.Set(replyStatsKey, stats)
		return next(statsContext{Context: c, stats: stats})
	}
}

// StatsFrom returns the stats recorded for c, or an empty set outside the middleware.
func StatsFrom(c tele.Context) *ReplyStats {
	if c != nil {
		if s, ok := c.Get(replyStatsKey).(*ReplyStats); ok && s != nil {
			return s
		}
	}
	return &ReplyStats{}
}
