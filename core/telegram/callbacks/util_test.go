package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"raw", &tele.Callback{Data: "\fconv|6f1c"}, "conv", "6f1c"},
		{"escaped", &tele.Callback{Data: "\\fconv|add"}, "conv", "add"},
		{"no payload", &tele.Callback{Data: "\fconv"}, "conv", ""},
		{"payload with pipe", &tele.Callback{Data: "\fconv|a|b"}, "conv", "a|b"},
		{"unique set", &tele.Callback{Unique: "conv", Data: "yes"}, "conv", "yes"},
	}
	for _, tc := range cases {
		key, payload := ParseCallbackData(tc.cb)
		if key != tc.key || payload != tc.payload {
			t.Fatalf("%s: got (%q, %q), want (%q, %q)", tc.name, key, payload, tc.key, tc.payload)
		}
	}
}
