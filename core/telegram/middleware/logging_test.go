package middleware

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSeenUpdatesEvictsOldest(t *testing.T) {
	s := &seenUpdates{set: map[int]struct{}{}}
	if !s.firstSight(1) || s.firstSight(1) {
		t.Fatalf("expected first sight once")
	}
	for id := 2; id <= len(s.ids)+1; id++ {
		s.firstSight(id)
	}
	if !s.firstSight(1) {
		t.Fatalf("id 1 should have been evicted")
	}
	if len(s.set) != len(s.ids) {
		t.Fatalf("set size = %d", len(s.set))
	}
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		"callback": {Callback: &tele.Callback{}},
		"command":  {Message: &tele.Message{Text: "/top_news -c"}},
		"text":     {Message: &tele.Message{Text: "us"}},
		"document": {Message: &tele.Message{Document: &tele.Document{}}},
		"other":    {},
	}
	for want, upd := range cases {
		if got := updateKind(upd); got != want {
			t.Fatalf("updateKind = %q, want %q", got, want)
		}
	}
}
