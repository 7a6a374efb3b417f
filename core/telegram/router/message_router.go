package router

import (
	"time"

	tg "github.com/m3rciful/newsbot/core/telegram"
	"github.com/m3rciful/newsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation side of text routing.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// step is one candidate in a routing chain. The first step that resolves a
// handler serves the update; the returned name labels the handler summary.
type step func(c tele.Context) (string, tele.HandlerFunc)

// TextRoutes builds the OnText and OnDocument routes. Text goes to the FSM
// while a conversation is active, then to a matching command, then to the
// registry fallback and finally to opts.UnknownText.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	active := func(name string) step {
		return func(c tele.Context) (string, tele.HandlerFunc) {
			if fsm == nil || c.Sender() == nil || !fsm.InProgress(c.Sender().ID) {
				return "", nil
			}
			return name, fsm.ManagerHandler
		}
	}
	always := func(name string, h tele.HandlerFunc) step {
		return func(tele.Context) (string, tele.HandlerFunc) { return name, h }
	}
	command := func(c tele.Context) (string, tele.HandlerFunc) {
		if reg == nil {
			return "", nil
		}
		if cmd, ok := reg.LookupCommand(c.Text()); ok {
			return normalizeHandlerName(cmd.Name), cmd.Handler
		}
		return "", nil
	}
	fallback := func(tele.Context) (string, tele.HandlerFunc) {
		if reg == nil {
			return "", nil
		}
		return "fallback", reg.TextFallback()
	}

	text := []step{active("fsm"), command, fallback, always("unknown_text", opts.UnknownText)}
	docs := []step{active("fsm_document"), always("unexpected_document", opts.UnknownDocument)}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: chain(text, "unknown_text")},
		{Endpoint: tele.OnDocument, Handler: chain(docs, "unexpected_document")},
	}
}

func chain(steps []step, unhandled string) tele.HandlerFunc {
	h := func(c tele.Context) error {
		start := time.Now()
		for _, resolve := range steps {
			name, next := resolve(c)
			if next == nil {
				continue
			}
			return handleWithSummary(c, name, start, "", "", func() error { return next(c) })
		}
		logHandlerSummary(c, unhandled, start, "skip", "ok", nil)
		return nil
	}
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
