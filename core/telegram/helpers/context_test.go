package helpers

import (
	"testing"

	"github.com/m3rciful/newsbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

type ctxStub struct {
	tele.Context
	store map[string]any
}

func newCtxStub() *ctxStub { return &ctxStub{store: map[string]any{}} }

func (s *ctxStub) Set(k string, v any) { s.store[k] = v }
func (s *ctxStub) Get(k string) any    { return s.store[k] }
func (s *ctxStub) Update() tele.Update { return tele.Update{ID: 11} }
func (s *ctxStub) Sender() *tele.User  { return &tele.User{ID: 7} }
func (s *ctxStub) Chat() *tele.Chat    { return &tele.Chat{ID: 9} }

func TestBuildContextCarriesIDs(t *testing.T) {
	c := newCtxStub()
	ctx := BuildContext(c)

	if got := logger.RIDFrom(ctx); got != "11:9:7" {
		t.Fatalf("rid = %q", got)
	}
	if logger.UserIDFrom(ctx) != 7 || logger.ChatIDFrom(ctx) != 9 || logger.UpdateIDFrom(ctx) != 11 {
		t.Fatalf("unexpected ids in context")
	}
	if BuildContext(c) != ctx {
		t.Fatalf("context not cached")
	}
}

func TestBuildContextKeepsExistingRID(t *testing.T) {
	c := newCtxStub()
	c.Set("rid", "custom")
	if got := logger.RIDFrom(BuildContext(c)); got != "custom" {
		t.Fatalf("rid = %q", got)
	}
}

func TestWithHandler(t *testing.T) {
	c := newCtxStub()
	ctx := WithHandler(c, "top_news")
	if logger.HandlerFrom(ctx) != "top_news" {
		t.Fatalf("handler = %q", logger.HandlerFrom(ctx))
	}
	if cached, _ := ContextFrom(c); logger.HandlerFrom(cached) != "top_news" {
		t.Fatalf("handler not stored")
	}
}
