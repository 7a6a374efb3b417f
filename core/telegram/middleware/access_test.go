package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestAdminOnlyMiddleware(t *testing.T) {
	var ran, rejected int
	next := func(tele.Context) error { ran++; return nil }
	reject := func(tele.Context) error { rejected++; return nil }

	// stubContext.Sender has ID 42
	_ = AdminOnlyMiddleware(AdminOptions{AdminID: 42, OnReject: reject})(next)(&stubContext{store: map[string]any{}})
	_ = AdminOnlyMiddleware(AdminOptions{AdminID: 7, OnReject: reject})(next)(&stubContext{store: map[string]any{}})
	_ = AdminOnlyMiddleware(AdminOptions{})(next)(&stubContext{store: map[string]any{}})

	if ran != 2 || rejected != 1 {
		t.Fatalf("ran=%d rejected=%d", ran, rejected)
	}
}
