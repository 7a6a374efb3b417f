package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	store map[string]any
}

func (s *stubContext) Set(k string, v any)                    { s.store[k] = v }
func (s *stubContext) Get(k string) any                       { return s.store[k] }
func (s *stubContext) Send(what any, opts ...any) error       { return nil }
func (s *stubContext) EditOrSend(what any, opts ...any) error { return nil }

func TestMessageMetricsMiddlewareCounts(t *testing.T) {
	c := &stubContext{store: map[string]any{}}
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		_ = c.Send("hello")
		_ = c.Send(&tele.Document{FileName: "news.pdf"})
		return c.EditOrSend("pick", &tele.ReplyMarkup{})
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}

	stats := StatsFrom(c)
	if stats.Messages() != 2 || stats.Documents() != 1 || !stats.Keyboard() {
		t.Fatalf("stats = %d messages, %d documents, kb=%v", stats.Messages(), stats.Documents(), stats.Keyboard())
	}
}

func TestStatsFromWithoutMiddleware(t *testing.T) {
	c := &stubContext{store: map[string]any{}}
	if s := StatsFrom(c); s.Messages() != 0 || s.Keyboard() {
		t.Fatalf("expected empty stats")
	}
}

func (s *stubContext) Update() tele.Update { return tele.Update{ID: 7} }
func (s *stubContext) Sender() *tele.User  { return &tele.User{ID: 42} }
func (s *stubContext) Chat() *tele.Chat    { return &tele.Chat{ID: 42} }
