package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongpoll(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "longpoll", LongPollTimeoutSeconds: 25})
	lp, ok := p.(*tele.LongPoller)
	if !ok {
		t.Fatalf("poller = %T, want *tele.LongPoller", p)
	}
	if lp.Timeout != 25*time.Second {
		t.Fatalf("timeout = %v", lp.Timeout)
	}
	if pollTimeout(p) != 25*time.Second {
		t.Fatalf("pollTimeout = %v", pollTimeout(p))
	}
	if len(lp.AllowedUpdates) != 2 {
		t.Fatalf("allowed updates = %v", lp.AllowedUpdates)
	}

	if lp := BuildPoller(PollerOptions{}).(*tele.LongPoller); lp.Timeout != defaultPollTimeout {
		t.Fatalf("default timeout = %v", lp.Timeout)
	}
}

func TestBuildPollerWebhook(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode: "Webhook",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook"},
	})
	wh, ok := p.(*tele.Webhook)
	if !ok {
		t.Fatalf("poller = %T, want *tele.Webhook", p)
	}
	if wh.Listen != "0.0.0.0:8443" || wh.Endpoint.PublicURL != "https://bot.example.com/hook" {
		t.Fatalf("webhook = %+v", wh)
	}
	if pollTimeout(p) != 0 {
		t.Fatalf("pollTimeout = %v, want 0", pollTimeout(p))
	}
}
