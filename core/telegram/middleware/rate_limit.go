package middleware

import (
	"sync"
	"time"

	"github.com/m3rciful/newsbot/core/logger"
	"golang.org/x/time/rate"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// PerSecond is the sustained rate per user; zero disables limiting.
	PerSecond float64
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

type userLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimitMiddleware returns a middleware that applies a token bucket per user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	var (
		mu        sync.Mutex
		limiters  = make(map[int64]*userLimiter)
		lastPrune time.Time
	)
	allow := func(userID int64, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastPrune) > limiterIdleTTL {
			for id, ul := range limiters {
				if now.Sub(ul.seen) > limiterIdleTTL {
					delete(limiters, id)
				}
			}
			lastPrune = now
		}
		ul, ok := limiters[userID]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Limit(opts.PerSecond), burst)}
			limiters[userID] = ul
		}
		ul.seen = now
		return ul.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.PerSecond <= 0 {
				return next(c)
			}

			// Determine update kind and apply configured exclusions
			upd := c.Update()
			kind := "other"
			switch {
			case upd.Callback != nil:
				kind = "callback"
			case upd.Message != nil:
				kind = "message"
			case upd.Query != nil:
				kind = "inline_query"
			}
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if !allow(user.ID, time.Now()) {
				attrs := []slog.Attr{
					slog.String("event", "tg.rate_limit"),
					slog.String("kind", kind),
					slog.Int64("user_id", user.ID),
				}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, slog.Int64("chat_id", chat.ID))
				}
				logger.TG.LogAttrs(logger.Background(), slog.LevelWarn, "rate limit", attrs...)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
