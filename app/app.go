// Package app wires the news conversation engine into the Telegram runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/m3rciful/newsbot/core/bootstrap"
	corecmd "github.com/m3rciful/newsbot/core/cmd"
	"github.com/m3rciful/newsbot/core/httpserver"
	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/core/metrics"
	"github.com/m3rciful/newsbot/core/scheduler"
	tg "github.com/m3rciful/newsbot/core/telegram"
	tghelpers "github.com/m3rciful/newsbot/core/telegram/helpers"
	"github.com/m3rciful/newsbot/core/telegram/router"
	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/conversation"
	"github.com/m3rciful/newsbot/news/events"
	"github.com/m3rciful/newsbot/news/render"
	"github.com/m3rciful/newsbot/news/source"
	"github.com/m3rciful/newsbot/news/store"

	tele "gopkg.in/telebot.v4"
)

const (
	msgRateLimited = "You are sending messages too fast. Please slow down."
	msgAdminOnly   = "This command is restricted."
	msgNoDocuments = "I only understand commands. Use /help to see what I can do."

	httpShutdownTimeout = 5 * time.Second
)

// App holds every long-lived component of the bot.
type App struct {
	cfg *Config
	db  *sqlx.DB

	sessions  state.Manager
	engine    *conversation.Engine
	transport *transport
	registry  *tg.Registry
	publisher events.Publisher

	gatherer  *prometheus.Registry
	collector *metrics.Collector
	scheduler *scheduler.Scheduler
	ops       *httpserver.Server
}

// Bootstrap initializes logging and storage, then builds the App.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, res.DB)
	if err != nil {
		if res.DB != nil {
			_ = res.DB.Close()
		}
		return nil, err
	}
	return a, nil
}

// New builds the App on top of db; a nil db selects the in-memory store.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	a := &App{
		cfg:       cfg,
		db:        db,
		sessions:  state.NewMemoryManager(),
		registry:  tg.NewRegistry(),
		publisher: events.New(cfg.Events),
		gatherer:  prometheus.NewRegistry(),
		scheduler: scheduler.New(),
	}
	a.gatherer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.collector = metrics.NewCollector(a.gatherer)

	var repo store.Repository
	if db != nil {
		repo = store.NewSQLStore(db)
	} else {
		repo = store.NewMemoryStore()
	}

	renderer, err := render.New(cfg.Render.Format)
	if err != nil {
		return nil, err
	}

	a.engine, err = conversation.New(conversation.Deps{
		Sessions:  a.sessions,
		Store:     repo,
		Source:    source.NewGoogleNews(cfg.News, source.WithObserver(a.collector)),
		Renderer:  renderer,
		Publisher: a.publisher,
		Metrics:   a.collector,
	})
	if err != nil {
		return nil, err
	}
	a.collector.TrackSessions(a.engine.ActiveSessions)
	a.transport = &transport{engine: a.engine, sessions: a.sessions}

	if err := a.scheduler.SessionSweep(a.engine, cfg.Session.TTL, cfg.Session.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.Metrics.Listen != "" {
		a.ops = httpserver.New(httpserver.Options{
			Addr:    cfg.Metrics.Listen,
			Metrics: metrics.Handler(a.gatherer),
			Health:  a.health,
		})
	}

	if err := a.registerCommands(); err != nil {
		return nil, err
	}
	return a, nil
}

// adminCommands are answered by the engine but listed only for admins.
var adminCommands = map[string]bool{cmdSessions: true}

const (
	cmdHelp     = "help"
	cmdSessions = "sessions"
)

func (a *App) registerCommands() error {
	a.engine.Command(cmdHelp, "Show this message", a.help)
	a.engine.Command(cmdSessions, "Show active conversations", a.activeSessions)

	for _, c := range a.engine.Commands() {
		cmd := tg.Command{
			Name:        c.Name,
			Handler:     a.transport.command(c.Name),
			Description: c.Description,
		}
		if adminCommands[c.Name] {
			cmd.AdminOnly, cmd.Hidden = true, true
		}
		if err := a.registry.RegisterCommand(cmd); err != nil {
			return err
		}
	}
	a.registry.SetTextFallback(a.transport.Text)
	return a.registry.RegisterCallback(buttonKey, a.transport.Button)
}

func (a *App) help(ctx context.Context, sc *conversation.Scope) error {
	return sc.Say(ctx, helpText(a.registry.ListCommands(true)))
}

func (a *App) activeSessions(ctx context.Context, sc *conversation.Scope) error {
	return sc.Say(ctx, fmt.Sprintf("Active sessions: %d", a.engine.ActiveSessions()))
}

func (a *App) health(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}

// TelegramRunOptions assembles middlewares, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	router.SetSummaryHook(a.collector.UpdateHandled)

	onLimited := func(c tele.Context) error {
		a.collector.RateLimited()
		return tghelpers.SendText(c, msgRateLimited)
	}

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, msgAdminOnly)
		},
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.transport, a.registry, router.TextOptions{
		UnknownDocument: func(c tele.Context) error {
			return tghelpers.SendText(c, msgNoDocuments)
		},
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, onLimited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	if a.ops != nil {
		if err := a.ops.Start(ctx); err != nil {
			return fmt.Errorf("app: ops server: %w", err)
		}
	}
	a.scheduler.Start()
	return nil
}

func (a *App) stop(ctx context.Context, _ tg.Runtime) error {
	a.scheduler.Stop()
	if a.ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
		defer cancel()
		if err := a.ops.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, logger.CompHTTP, "shutdown.fail", slog.String("err", err.Error()))
		}
	}
	if err := a.publisher.Close(); err != nil {
		logger.Warn(ctx, logger.CompEvents, "close.fail", slog.String("err", err.Error()))
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
