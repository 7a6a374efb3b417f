package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/newsbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/newsbot/core/telegram/helpers"
	"github.com/m3rciful/newsbot/core/telegram/keyboard"
	"github.com/m3rciful/newsbot/core/telegram/router"
	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/conversation"
	"github.com/m3rciful/newsbot/news/render"

	tele "gopkg.in/telebot.v4"
)

// buttonKey is the callback unique shared by every conversation button.
const buttonKey = "conv"

const choicesPerRow = 2

// replier renders engine replies through telebot.
type replier struct {
	c tele.Context
}

func (r replier) SendText(_ context.Context, text string, m conversation.Markup) error {
	if rm := replyMarkup(m); rm != nil {
		return tghelpers.SendText(r.c, text, &tele.SendOptions{ReplyMarkup: rm})
	}
	return tghelpers.SendText(r.c, text)
}

func (r replier) SendDocument(_ context.Context, doc render.Document) error {
	return tghelpers.SendDocument(r.c, doc.Data, doc.Filename, doc.MIME)
}

func replyMarkup(m conversation.Markup) *tele.ReplyMarkup {
	switch {
	case len(m.Buttons) > 0:
		btns := make([]keyboard.InlineBtn, 0, len(m.Buttons))
		for _, b := range m.Buttons {
			btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: buttonKey, Data: b.Data})
		}
		return keyboard.InlineButtons(btns)
	case len(m.Choices) > 0:
		return keyboard.OneTimeChoices(m.Choices, choicesPerRow)
	case m.Remove:
		return keyboard.RemoveKeyboard()
	}
	return nil
}

// transport turns telebot updates into engine events.
type transport struct {
	engine   *conversation.Engine
	sessions state.Manager
}

func (t *transport) handle(c tele.Context, ev conversation.Event) error {
	if c.Sender() == nil {
		return nil
	}
	ev.SenderID = c.Sender().ID
	ev.Name = displayName(c.Sender())

	ctx := tghelpers.BuildContext(c)
	res := t.engine.Handle(ctx, ev, replier{c: c})
	c.Set(router.OutcomeKey, string(res.Outcome))
	if res.Outcome == conversation.OutcomeEndedError {
		return res.Err
	}
	return nil
}

// command returns the handler for a slash command registered under name.
func (t *transport) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return t.handle(c, conversation.Event{
			Kind:    conversation.KindCommand,
			Command: name,
			Text:    c.Text(),
		})
	}
}

// Text routes free text. Unregistered slash commands reach here too and are
// passed on as commands so the engine can answer them.
func (t *transport) Text(c tele.Context) error {
	text := c.Text()
	if strings.HasPrefix(text, "/") {
		name := strings.Fields(text)[0]
		if at := strings.IndexByte(name, '@'); at > 0 {
			name = name[:at]
		}
		return t.handle(c, conversation.Event{
			Kind:    conversation.KindCommand,
			Command: strings.TrimPrefix(name, "/"),
			Text:    text,
		})
	}
	return t.handle(c, conversation.Event{Kind: conversation.KindText, Text: text})
}

// Button handles presses on conversation inline buttons.
func (t *transport) Button(c tele.Context) error {
	return t.handle(c, conversation.Event{
		Kind: conversation.KindButton,
		Data: callbacks.CallbackPayload(c),
	})
}

// InProgress and ManagerHandler let the text router hand replies to the engine.
func (t *transport) InProgress(userID int64) bool {
	return t.sessions.InProgress(userID)
}

func (t *transport) ManagerHandler(c tele.Context) error {
	return t.Text(c)
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func helpText(cmds []tele.Command) string {
	var b strings.Builder
	b.WriteString("Here is what I can do:")
	for _, c := range cmds {
		fmt.Fprintf(&b, "\n%s - %s", c.Text, c.Description)
	}
	return b.String()
}
