package conversation

import (
	"context"
	"strings"

	"github.com/m3rciful/newsbot/news/render"
)

// Kind classifies inbound events.
type Kind int

const (
	// KindCommand is a slash command; Command holds its name without the slash.
	KindCommand Kind = iota + 1
	// KindText is a plain text reply.
	KindText
	// KindButton is an inline button press; Data holds the button payload.
	KindButton
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindButton:
		return "button"
	default:
		return "unknown"
	}
}

// Event is one inbound update reduced to what the engine needs.
type Event struct {
	Kind     Kind
	Command  string
	Text     string
	Data     string
	SenderID int64
	Name     string
}

// Input returns the trimmed text or button payload.
func (e Event) Input() string {
	if e.Kind == KindButton {
		return strings.TrimSpace(e.Data)
	}
	return strings.TrimSpace(e.Text)
}

// Button is an inline button.
type Button struct {
	Text string
	Data string
}

// Markup decorates an outgoing text. Choices become a one-time reply keyboard,
// Buttons an inline keyboard with one button per row. Remove hides a previous reply keyboard.
type Markup struct {
	Choices []string
	Buttons []Button
	Remove  bool
}

// Replier delivers outbound actions to the chat the event came from.
type Replier interface {
	SendText(ctx context.Context, text string, markup Markup) error
	SendDocument(ctx context.Context, doc render.Document) error
}

// Outcome summarizes what handling an event did to the conversation.
type Outcome string

const (
	OutcomeContinue   Outcome = "continue"
	OutcomeEnded      Outcome = "ended"
	OutcomeEndedError Outcome = "ended_error"
	OutcomeRejected   Outcome = "rejected"
	OutcomeIgnored    Outcome = "ignored"
)
