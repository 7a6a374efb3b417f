// Package conversation runs the multi-step chat flows of the news bot.
//
// Every inbound event goes through Engine.Handle. A user has at most one active
// conversation, stored in a state.Manager as a family-prefixed state plus scratch
// values. Each state maps to a step that returns the next state, End, a
// *ValidationError (stay and re-prompt) or a terminal error.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/events"
	"github.com/m3rciful/newsbot/news/render"
	"github.com/m3rciful/newsbot/news/source"
	"github.com/m3rciful/newsbot/news/store"
)

// End terminates the conversation when returned by a step.
const End = state.StateIdle

// Scratch keys.
const (
	keyUserID     = "user_id"
	keyTopicName  = "topic_name"
	keyTopicHash  = "topic_hash"
	keyCountry    = "country_code"
	keyQuery      = "query"
	keyWhen       = "when"
	keyFromDate   = "from_date"
	keyToDate     = "to_date"
	keyFilter     = "filter_choice"
	keyDays       = "filter_num_days"
	keyQueryType  = "query_type"
	keySelectedID = "selected_id"
)

// Accept declares which inputs a step takes.
type Accept uint8

const (
	AcceptText Accept = 1 << iota
	AcceptButton
	AcceptAny = AcceptText | AcceptButton
)

func (a Accept) allows(k Kind) bool {
	switch k {
	case KindText:
		return a&AcceptText != 0
	case KindButton:
		return a&AcceptButton != 0
	}
	return false
}

// StepFunc handles input in one state.
type StepFunc func(ctx context.Context, sc *Scope) (state.State, error)

type step struct {
	accept Accept
	run    StepFunc
}

type flow struct {
	command     string
	description string
	entry       StepFunc
	steps       map[state.State]step
}

// CommandFunc runs a command that does not start a conversation.
type CommandFunc func(ctx context.Context, sc *Scope) error

type command struct {
	description string
	run         CommandFunc
	// public commands skip the registration check
	public bool
}

// Metrics receives engine counters. Implementations must be safe for concurrent use.
type Metrics interface {
	ConversationStarted(flow string)
	ConversationEnded(flow, outcome string)
	ValidationFailed(state string)
	DocumentSent(format string)
	SessionsEvicted(n int)
}

type nopMetrics struct{}

func (nopMetrics) ConversationStarted(string)       {}
func (nopMetrics) ConversationEnded(string, string) {}
func (nopMetrics) ValidationFailed(string)          {}
func (nopMetrics) DocumentSent(string)              {}
func (nopMetrics) SessionsEvicted(int)              {}

// Deps are the collaborators of the engine.
type Deps struct {
	Sessions  state.Manager
	Store     store.Repository
	Source    source.Source
	Renderer  render.Renderer
	Publisher events.Publisher
	Metrics   Metrics
	Now       func() time.Time
}

// Engine dispatches events to conversation steps and stateless commands.
type Engine struct {
	sessions  state.Manager
	repo      store.Repository
	source    source.Source
	renderer  render.Renderer
	publisher events.Publisher
	metrics   Metrics
	now       func() time.Time

	flows    map[string]flow
	steps    map[state.State]step
	commands map[string]command

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// userLock serializes one user's events. refs counts holders and waiters.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// New builds an engine with the news flows and built-in commands registered.
func New(d Deps) (*Engine, error) {
	if d.Sessions == nil || d.Store == nil || d.Source == nil || d.Renderer == nil {
		return nil, errors.New("conversation: sessions, store, source and renderer are required")
	}
	e := &Engine{
		sessions:  d.Sessions,
		repo:      d.Store,
		source:    d.Source,
		renderer:  d.Renderer,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		now:       d.Now,
		flows:     make(map[string]flow),
		steps:     make(map[state.State]step),
		commands:  make(map[string]command),
		locks:     make(map[int64]*userLock),
	}
	if e.publisher == nil {
		e.publisher = events.Nop{}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	if e.now == nil {
		e.now = time.Now
	}

	for _, f := range []flow{
		e.topNewsFlow(),
		e.editTopicsFlow(),
		e.editQueriesFlow(),
		e.topicNewsFlow(),
		e.queryNewsFlow(),
	} {
		e.flows[f.command] = f
		for st, s := range f.steps {
			if _, dup := e.steps[st]; dup {
				return nil, fmt.Errorf("conversation: state %q registered twice", st)
			}
			e.steps[st] = s
		}
	}
	e.registerBuiltins()
	return e, nil
}

// Command registers a stateless command. Registered commands require a registered user.
func (e *Engine) Command(name, description string, fn CommandFunc) {
	e.commands[name] = command{description: description, run: fn}
}

// CommandInfo describes a command the engine answers.
type CommandInfo struct {
	Name        string
	Description string
}

// Commands lists conversation entry points and stateless commands, sorted by name.
func (e *Engine) Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(e.flows)+len(e.commands)+1)
	for name, f := range e.flows {
		out = append(out, CommandInfo{Name: name, Description: f.description})
	}
	for name, c := range e.commands {
		out = append(out, CommandInfo{Name: name, Description: c.description})
	}
	out = append(out, CommandInfo{Name: cmdCancel, Description: "Cancel the current operation"})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveSessions reports users with a conversation in progress.
func (e *Engine) ActiveSessions() int { return e.sessions.Active() }

// Evict drops sessions idle for longer than ttl, skipping users whose event is
// being handled, and forgets the locks of users with nothing in progress.
func (e *Engine) Evict(ttl time.Duration) int {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	n := e.sessions.Evict(ttl, func(id int64) bool {
		l, ok := e.locks[id]
		return ok && l.refs > 0
	})
	for id, l := range e.locks {
		if l.refs == 0 && !e.sessions.InProgress(id) {
			delete(e.locks, id)
		}
	}
	if n > 0 {
		e.metrics.SessionsEvicted(n)
	}
	return n
}

// Result is the engine's verdict for one event.
type Result struct {
	Outcome Outcome
	Flow    string
	State   state.State
	Next    state.State
	Err     error
}

// Handle processes one event. Events of a single user are serialized.
func (e *Engine) Handle(ctx context.Context, ev Event, r Replier) (res Result) {
	lock := e.acquire(ev.SenderID)
	defer e.release(lock)

	start := time.Now()
	current := e.sessions.GetState(ev.SenderID)
	res.State = current
	res.Flow = flowOf(current)

	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, logger.CompConv, "conv.panic",
				slog.String("state", string(current)),
				slog.String("err", fmt.Sprint(p)),
				slog.String("stack", string(debug.Stack())),
			)
			e.sessions.ClearScratch(ev.SenderID, keyUserID)
			_ = r.SendText(ctx, asFailure(nil).Notice(), Markup{Remove: true})
			res = Result{Outcome: OutcomeEndedError, Flow: res.Flow, State: current, Next: End, Err: fmt.Errorf("panic: %v", p)}
		}
		e.logResult(ctx, ev, res, time.Since(start))
	}()

	switch ev.Kind {
	case KindCommand:
		return e.handleCommand(ctx, ev, r, current)
	case KindText, KindButton:
		return e.handleInput(ctx, ev, r, current)
	default:
		res.Outcome = OutcomeIgnored
		return res
	}
}

func (e *Engine) acquire(id int64) *userLock {
	e.locksMu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &userLock{}
		e.locks[id] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (e *Engine) release(l *userLock) {
	l.mu.Unlock()
	e.locksMu.Lock()
	l.refs--
	e.locksMu.Unlock()
}

func (e *Engine) handleCommand(ctx context.Context, ev Event, r Replier, current state.State) Result {
	name := strings.ToLower(strings.TrimPrefix(ev.Command, "/"))
	res := Result{State: current, Flow: flowOf(current), Next: current}

	if cmd, ok := e.commands[name]; ok && cmd.public {
		sc := e.scope(ev, r, uuid.Nil)
		res.Outcome = OutcomeEnded
		if err := cmd.run(ctx, sc); err != nil {
			res.Outcome, res.Err = OutcomeEndedError, err
			e.sendFailure(ctx, r, err)
		}
		return res
	}

	userID, err := e.resolveUser(ctx, ev.SenderID)
	if err != nil {
		return e.reject(ctx, r, res, err)
	}

	if name == cmdCancel {
		if current == state.StateIdle {
			res.Outcome = OutcomeIgnored
			e.send(ctx, r, "Nothing to cancel.", Markup{})
			return res
		}
		e.sessions.ClearScratch(ev.SenderID, keyUserID)
		e.metrics.ConversationEnded(res.Flow, "cancelled")
		res.Outcome, res.Next = OutcomeEnded, End
		e.send(ctx, r, "Operation cancelled.", Markup{Remove: true})
		return res
	}

	if f, ok := e.flows[name]; ok {
		if current != state.StateIdle {
			e.metrics.ConversationEnded(res.Flow, "replaced")
		}
		e.sessions.ClearScratch(ev.SenderID, keyUserID)
		e.metrics.ConversationStarted(f.command)
		res.Flow = f.command
		ctx = logger.WithFlow(ctx, f.command)
		next, err := f.entry(ctx, e.scope(ev, r, userID))
		return e.apply(ctx, ev, r, res, state.StateIdle, next, err)
	}

	if cmd, ok := e.commands[name]; ok {
		res.Outcome = OutcomeEnded
		if err := cmd.run(ctx, e.scope(ev, r, userID)); err != nil {
			res.Outcome, res.Err = OutcomeEndedError, err
			e.sendFailure(ctx, r, err)
		}
		return res
	}

	res.Outcome = OutcomeIgnored
	e.send(ctx, r, "Unknown command. Use /help to see what I can do.", Markup{})
	return res
}

func (e *Engine) handleInput(ctx context.Context, ev Event, r Replier, current state.State) Result {
	res := Result{State: current, Flow: flowOf(current), Next: current}
	if current == state.StateIdle {
		res.Outcome = OutcomeIgnored
		if ev.Kind == KindButton {
			e.send(ctx, r, "This menu has expired. Please run the command again.", Markup{})
		} else {
			e.send(ctx, r, "I only understand commands. Use /help to see what I can do.", Markup{})
		}
		return res
	}

	s, ok := e.steps[current]
	if !ok {
		e.sessions.ClearScratch(ev.SenderID, keyUserID)
		res.Outcome, res.Next = OutcomeIgnored, End
		e.send(ctx, r, "This conversation has expired. Please run the command again.", Markup{Remove: true})
		return res
	}

	userID, err := e.resolveUser(ctx, ev.SenderID)
	if err != nil {
		return e.reject(ctx, r, res, err)
	}

	ctx = logger.WithFlow(ctx, res.Flow)
	if !s.accept.allows(ev.Kind) {
		msg := "Please reply with text."
		if ev.Kind == KindText {
			msg = "Please use the buttons above."
		}
		return e.apply(ctx, ev, r, res, current, current, invalid(msg))
	}
	next, err := s.run(ctx, e.scope(ev, r, userID))
	return e.apply(ctx, ev, r, res, current, next, err)
}

// apply turns a step result into session changes and a Result.
func (e *Engine) apply(ctx context.Context, ev Event, r Replier, res Result, current, next state.State, err error) Result {
	var verr *ValidationError
	switch {
	case err == nil && next == End:
		e.sessions.ClearScratch(ev.SenderID, keyUserID)
		e.metrics.ConversationEnded(res.Flow, string(OutcomeEnded))
		res.Outcome, res.Next = OutcomeEnded, End
	case err == nil:
		e.sessions.SetState(ev.SenderID, next)
		res.Outcome, res.Next = OutcomeContinue, next
	case errors.As(err, &verr):
		e.metrics.ValidationFailed(string(current))
		e.send(ctx, r, verr.Message, verr.Markup)
		if current == state.StateIdle {
			e.sessions.ClearScratch(ev.SenderID, keyUserID)
			e.metrics.ConversationEnded(res.Flow, string(OutcomeEnded))
			res.Outcome, res.Next = OutcomeEnded, End
		} else {
			res.Outcome, res.Next = OutcomeContinue, current
		}
		res.Err = err
	default:
		e.sessions.ClearScratch(ev.SenderID, keyUserID)
		e.metrics.ConversationEnded(res.Flow, string(OutcomeEndedError))
		e.sendFailure(ctx, r, err)
		res.Outcome, res.Next, res.Err = OutcomeEndedError, End, err
	}
	return res
}

func (e *Engine) reject(ctx context.Context, r Replier, res Result, err error) Result {
	res.Err = err
	res.Next = res.State
	if errors.Is(err, ErrNotRegistered) {
		res.Outcome = OutcomeRejected
	} else {
		res.Outcome = OutcomeEndedError
	}
	e.sendFailure(ctx, r, err)
	return res
}

// resolveUser returns the stored user id, looking it up once and caching it in the session.
func (e *Engine) resolveUser(ctx context.Context, senderID int64) (uuid.UUID, error) {
	if v, ok := e.sessions.GetTemp(senderID, keyUserID); ok {
		if id, ok := v.(uuid.UUID); ok && id != uuid.Nil {
			return id, nil
		}
	}
	u, err := e.repo.UserByExternalID(ctx, externalID(senderID))
	if errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, ErrNotRegistered
	}
	if err != nil {
		return uuid.Nil, err
	}
	e.sessions.SetTemp(senderID, keyUserID, u.ID)
	return u.ID, nil
}

func (e *Engine) sendFailure(ctx context.Context, r Replier, err error) {
	f := asFailure(err)
	level := slog.LevelWarn
	if f.code == "internal" || f.code == "db_error" || f.code == "db_connection" {
		level = slog.LevelError
	}
	logger.Event(ctx, logger.CompConv, level, "conv.failure",
		slog.String("err_code", f.code),
		slog.String("err", err.Error()),
	)
	e.send(ctx, r, f.Notice(), Markup{Remove: true})
}

func (e *Engine) send(ctx context.Context, r Replier, text string, m Markup) {
	if err := r.SendText(ctx, text, m); err != nil {
		logger.Warn(ctx, logger.CompConv, "conv.reply",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

func (e *Engine) logResult(ctx context.Context, ev Event, res Result, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("kind", ev.Kind.String()),
		slog.String("flow", res.Flow),
		slog.String("state", string(res.State)),
		slog.String("next_state", string(res.Next)),
		slog.String("outcome", string(res.Outcome)),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if ev.Kind == KindCommand {
		attrs = append(attrs, slog.String("cmd", ev.Command))
	}
	level := slog.LevelDebug
	if res.Outcome == OutcomeEndedError {
		level = slog.LevelWarn
	}
	logger.Event(ctx, logger.CompConv, level, "conv.event", attrs...)
}

func (e *Engine) scope(ev Event, r Replier, userID uuid.UUID) *Scope {
	return &Scope{Event: ev, UserID: userID, engine: e, replier: r}
}

func flowOf(st state.State) string {
	if st == state.StateIdle {
		return ""
	}
	if i := strings.IndexByte(string(st), ':'); i > 0 {
		return string(st[:i])
	}
	return string(st)
}

func externalID(senderID int64) string {
	return strconv.FormatInt(senderID, 10)
}
