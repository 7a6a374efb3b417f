package middleware

import (
	"log/slog"

	"github.com/m3rciful/newsbot/core/logger"
	tghelpers "github.com/m3rciful/newsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	// AdminID is the only user let through; 0 lets everyone through.
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware passes updates from the configured admin and rejects the rest.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID == 0 || (c.Sender() != nil && c.Sender().ID == opts.AdminID) {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), "tg", "admin.reject", slog.String("status", "skip"))
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
