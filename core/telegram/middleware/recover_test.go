package middleware

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	c := &stubContext{store: map[string]any{}}
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })

	err := h(c)
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("err = %v, want ErrPanic", err)
	}
}

func TestRecoverMiddlewarePassesThrough(t *testing.T) {
	want := errors.New("plain")
	h := RecoverMiddleware(func(tele.Context) error { return want })
	if err := h(&stubContext{store: map[string]any{}}); err != want {
		t.Fatalf("err = %v", err)
	}
}
