package middleware

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/newsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers the last few update ids so an update routed through
// several wrapped handlers is logged once.
type seenUpdates struct {
	mu   sync.Mutex
	ids  [256]int
	next int
	set  map[int]struct{}
}

var receipts = &seenUpdates{set: make(map[int]struct{}, 256)}

// firstSight reports whether id has not been seen recently, and records it.
func (s *seenUpdates) firstSight(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		return false
	}
	if len(s.set) == len(s.ids) {
		delete(s.set, s.ids[s.next])
	}
	s.ids[s.next] = id
	s.next = (s.next + 1) % len(s.ids)
	s.set[id] = struct{}{}
	return true
}

// LoggerMiddleware builds the update context (rid plus ids) and logs a
// sampled debug receipt per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if logger.ShouldSampleDebug() && receipts.firstSight(upd.ID) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok"), slog.String("kind", updateKind(upd))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message == nil:
		return "other"
	case upd.Message.Document != nil:
		return "document"
	case strings.HasPrefix(upd.Message.Text, "/"):
		return "command"
	}
	return "text"
}
