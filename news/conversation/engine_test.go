package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/source"
	"github.com/m3rciful/newsbot/news/store"
)

const alice int64 = 1001

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestUnregisteredUserIsRejected(t *testing.T) {
	h := newHarness(t)

	res := h.cmd(alice, "/edit_saved_topics")

	require.Equal(t, OutcomeRejected, res.Outcome)
	require.Contains(t, h.out.last().text, msgNotRegistered)
	require.Equal(t, state.StateIdle, h.sessions.GetState(alice))
	require.Empty(t, h.source.top)
}

func TestStartRegistersThenGreets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.engine.Handle(ctx, Event{Kind: KindCommand, Command: "start", Text: "/start", SenderID: alice, Name: "alice"}, h.out)
	require.Equal(t, OutcomeEnded, res.Outcome)
	require.Equal(t, "Hello, alice! You have been added to the database.", h.out.last().text)

	res = h.engine.Handle(ctx, Event{Kind: KindCommand, Command: "start", Text: "/start", SenderID: alice, Name: "alice_new"}, h.out)
	require.Equal(t, OutcomeEnded, res.Outcome)
	require.Equal(t, "Hello there, alice_new!", h.out.last().text)

	u, err := h.repo.UserByExternalID(ctx, "1001")
	require.NoError(t, err)
	require.Equal(t, "alice_new", u.Name)

	h.engine.Handle(ctx, Event{Kind: KindCommand, Command: "start", Text: "/start", SenderID: 2002}, h.out)
	require.Equal(t, "Hello, Unknown! You have been added to the database.", h.out.last().text)
}

func TestIdentityResolvedOncePerSession(t *testing.T) {
	h := newHarness(t)
	h.register(alice)

	h.cmd(alice, "/edit_saved_topics")
	h.press(alice, actionAdd)
	h.text(alice, "rust")

	require.Equal(t, 1, h.repo.lookups)
}

func TestCancelClearsScratchButKeepsUser(t *testing.T) {
	h := newHarness(t)
	userID := h.register(alice)

	h.cmd(alice, "/edit_saved_topics")
	h.press(alice, actionAdd)
	h.text(alice, "rust")
	require.Equal(t, StateTopicsAddHash, h.sessions.GetState(alice))

	res := h.cmd(alice, "/cancel")
	require.Equal(t, OutcomeEnded, res.Outcome)
	require.Equal(t, "Operation cancelled.", h.out.last().text)
	require.Equal(t, state.StateIdle, h.sessions.GetState(alice))

	_, ok := h.sessions.GetTemp(alice, keyTopicName)
	require.False(t, ok)
	cached, ok := h.sessions.GetTemp(alice, keyUserID)
	require.True(t, ok)
	require.Equal(t, userID, cached)

	res = h.cmd(alice, "/cancel")
	require.Equal(t, OutcomeIgnored, res.Outcome)
	require.Equal(t, "Nothing to cancel.", h.out.last().text)
}

func TestCancelWorksInEveryState(t *testing.T) {
	for st := range newHarness(t).engine.steps {
		st := st
		t.Run(string(st), func(t *testing.T) {
			h := newHarness(t)
			userID := h.register(alice)
			h.sessions.SetTemp(alice, keyUserID, userID)
			h.sessions.SetTemp(alice, keyQuery, "leftover")
			h.sessions.SetState(alice, st)

			res := h.cmd(alice, "/cancel")

			require.Equal(t, OutcomeEnded, res.Outcome)
			require.Equal(t, state.StateIdle, h.sessions.GetState(alice))
			_, ok := h.sessions.GetTemp(alice, keyQuery)
			require.False(t, ok)
		})
	}
}

func TestEntryPointReplacesActiveConversation(t *testing.T) {
	h := newHarness(t)
	h.register(alice)

	h.cmd(alice, "/edit_saved_topics")
	h.press(alice, actionAdd)
	h.text(alice, "rust")

	res := h.cmd(alice, "/top_news")
	require.Equal(t, OutcomeEnded, res.Outcome)
	require.Equal(t, state.StateIdle, h.sessions.GetState(alice))
	_, ok := h.sessions.GetTemp(alice, keyTopicName)
	require.False(t, ok)
	require.Equal(t, 1, h.metrics.ended["edit_topics/replaced"])
}

func TestStatelessCommandKeepsConversation(t *testing.T) {
	h := newHarness(t)
	userID := h.register(alice)
	h.addTopic(userID, "tech", "TECHNOLOGY", "US")

	h.cmd(alice, "/edit_saved_topics")
	h.press(alice, actionAdd)

	res := h.cmd(alice, "/display_user_topics")
	require.Equal(t, OutcomeEnded, res.Outcome)
	require.Equal(t, "Here are your saved topics:\n1. tech (US) - TECHNOLOGY", h.out.last().text)
	require.Equal(t, StateTopicsAddName, h.sessions.GetState(alice))
}

func TestWrongInputKindReprompts(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	h.cmd(alice, "/edit_saved_topics")

	res := h.text(alice, "add")
	require.Equal(t, OutcomeContinue, res.Outcome)
	require.Equal(t, "Please use the buttons above.", h.out.last().text)
	require.Equal(t, StateTopicsSelectAction, h.sessions.GetState(alice))

	h.press(alice, actionAdd)
	res = h.press(alice, "rust")
	require.Equal(t, OutcomeContinue, res.Outcome)
	require.Equal(t, "Please reply with text.", h.out.last().text)
	require.Equal(t, 1, h.metrics.validations[string(StateTopicsAddName)])
}

func TestInputWithoutConversation(t *testing.T) {
	h := newHarness(t)

	res := h.text(alice, "hello")
	require.Equal(t, OutcomeIgnored, res.Outcome)
	require.Contains(t, h.out.last().text, "/help")

	res = h.press(alice, "add")
	require.Equal(t, OutcomeIgnored, res.Outcome)
	require.Contains(t, h.out.last().text, "expired")
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.register(alice)

	res := h.cmd(alice, "/weather")
	require.Equal(t, OutcomeIgnored, res.Outcome)
	require.Contains(t, h.out.last().text, "/help")
}

func TestStoreFailureEndsWithCode(t *testing.T) {
	h := newHarness(t)
	h.register(alice)

	h.cmd(alice, "/edit_saved_topics")
	h.press(alice, actionAdd)
	h.text(alice, "rust")
	h.text(alice, "CAAqBw")

	h.repo.FailWith(fmt.Errorf("create_topic: %w", store.ErrConnection))
	res := h.text(alice, "Canada")

	require.Equal(t, OutcomeEndedError, res.Outcome)
	require.Equal(t, msgConnection+" [db_connection]", h.out.last().text)
	require.Equal(t, state.StateIdle, h.sessions.GetState(alice))
	_, ok := h.sessions.GetTemp(alice, keyTopicHash)
	require.False(t, ok)
}

func TestSourceTimeoutEndsConversation(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	h.source.err = fmt.Errorf("fetch: %w", source.ErrTimeout)

	res := h.cmd(alice, "/top_news")

	require.Equal(t, OutcomeEndedError, res.Outcome)
	require.Equal(t, msgTimeout+" [news_timeout]", h.out.last().text)
	require.Empty(t, h.out.docs)
}

func TestUnclassifiedSourceErrorIsUnavailable(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	h.source.err = fmt.Errorf("dns lookup failed")

	h.cmd(alice, "/top_news")
	require.Equal(t, msgUnavailable+" [news_unavailable]", h.out.last().text)
}

func TestRenderFailure(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	h.renderer.err = fmt.Errorf("font missing")

	res := h.cmd(alice, "/top_news")
	require.Equal(t, OutcomeEndedError, res.Outcome)
	require.Equal(t, msgRender+" [render_failed]", h.out.last().text)
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	h.renderer.panics = true

	h.cmd(alice, "/top_news -c")
	res := h.text(alice, "Canada")

	require.Equal(t, OutcomeEndedError, res.Outcome)
	require.Equal(t, msgInternal+" [internal]", h.out.last().text)
	require.Equal(t, state.StateIdle, h.sessions.GetState(alice))
}

func TestEmptyResultSendsNotice(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	h.source.entries = nil

	res := h.cmd(alice, "/top_news")
	require.Equal(t, OutcomeEnded, res.Outcome)
	require.Equal(t, "No news found for top.", h.out.last().text)
	require.Empty(t, h.out.docs)
	require.Empty(t, h.publisher.deliveries)
}

func TestEvictDropsIdleSessions(t *testing.T) {
	clock := testNow
	sessions := state.NewMemoryManager(state.WithClock(func() time.Time { return clock }))
	e, err := New(Deps{
		Sessions: sessions,
		Store:    store.NewMemoryStore(),
		Source:   &fakeSource{},
		Renderer: &fakeRenderer{},
	})
	require.NoError(t, err)

	sessions.SetState(alice, StateTopSelectCountry)
	require.Equal(t, 1, e.ActiveSessions())

	clock = clock.Add(25 * time.Hour)
	require.Equal(t, 1, e.Evict(24*time.Hour))
	require.Equal(t, 0, e.ActiveSessions())
}

func TestEvictForgetsLocksOfIdleSenders(t *testing.T) {
	h := newHarness(t)
	h.register(alice)
	require.Equal(t, OutcomeContinue, h.cmd(alice, "/top_news -c").Outcome)

	for i := int64(0); i < 100; i++ {
		require.Equal(t, OutcomeRejected, h.cmd(5000+i, "/top_news").Outcome)
	}
	require.Len(t, h.engine.locks, 101)

	require.Equal(t, 0, h.engine.Evict(time.Hour))
	require.Len(t, h.engine.locks, 1)
	require.Contains(t, h.engine.locks, alice)
}

func TestEvictSkipsUserBeingHandled(t *testing.T) {
	clock := testNow
	sessions := state.NewMemoryManager(state.WithClock(func() time.Time { return clock }))
	e, err := New(Deps{
		Sessions: sessions,
		Store:    store.NewMemoryStore(),
		Source:   &fakeSource{},
		Renderer: &fakeRenderer{},
	})
	require.NoError(t, err)

	sessions.SetState(alice, StateTopicsAddName)
	sessions.SetTemp(alice, keyTopicName, "tech")
	clock = clock.Add(25 * time.Hour)

	held := e.acquire(alice)
	require.Equal(t, 0, e.Evict(24*time.Hour))
	name, ok := sessions.GetTempString(alice, keyTopicName)
	require.True(t, ok)
	require.Equal(t, "tech", name)
	e.release(held)

	require.Equal(t, 1, e.Evict(24*time.Hour))
	require.False(t, sessions.InProgress(alice))
	require.Empty(t, e.locks)
}

func TestCommandsListed(t *testing.T) {
	h := newHarness(t)
	names := map[string]bool{}
	for _, c := range h.engine.Commands() {
		names[c.Name] = true
		require.NotEmpty(t, c.Description, c.Name)
	}
	for _, want := range []string{"start", "cancel", "top_news", "topic_news", "query_news", "edit_saved_topics", "edit_saved_queries", "display_user_topics", "display_user_queries", "search_query_help"} {
		require.True(t, names[want], want)
	}
}

func TestStatesAreUniqueAcrossFamilies(t *testing.T) {
	h := newHarness(t)
	require.Contains(t, h.engine.steps, StateQueriesAdd)
	require.NotEqual(t, StateQueriesAdd, StateTopicsAddName)
	for st := range h.engine.steps {
		require.NotEmpty(t, flowOf(st))
	}
}
