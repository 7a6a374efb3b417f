package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/newsbot/core/telegram"
	"github.com/m3rciful/newsbot/core/telegram/callbacks"
	"github.com/m3rciful/newsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown keys. It must answer
	// the callback itself.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the OnCallback handler that dispatches on the
// callback key through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, payload := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{
			slog.String("cb_key", key),
			slog.Int("payload_len", len(payload)),
		}

		if cbHandler, ok := reg.GetCallback(key); ok {
			// Stops the client spinner; conversation replies arrive as messages.
			_ = c.Respond()
			return handleWithSummary(c, name, start, "", "", func() error {
				return cbHandler(c)
			}, extras...)
		}

		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		extras = append(extras, slog.String("reason", "not_found"))
		return handleWithSummary(c, name, start, "skip", "not_found", func() error {
			if fallback == nil {
				return c.Respond()
			}
			return fallback(c)
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
