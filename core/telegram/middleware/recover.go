package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/newsbot/core/logger"
	tghelpers "github.com/m3rciful/newsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// ErrPanic marks handler errors produced from a recovered panic.
var ErrPanic = errors.New("handler panic")

// RecoverMiddleware turns handler panics into ErrPanic so one bad update
// cannot stop the poller.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ctx := logger.Background()
			if c != nil {
				ctx = tghelpers.BuildContext(c)
			}
			logger.Error(ctx, "tg", "tg.panic",
				slog.String("panic", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}()
		return next(c)
	}
}
