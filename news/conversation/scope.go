package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/news/render"
)

// Scope is what a step sees: the event, the resolved user and the session scratch.
type Scope struct {
	Event  Event
	UserID uuid.UUID

	engine  *Engine
	replier Replier
}

// Input returns the trimmed text or button payload of the event.
func (s *Scope) Input() string { return s.Event.Input() }

// Say sends a plain text.
func (s *Scope) Say(ctx context.Context, text string) error {
	return s.SayWith(ctx, text, Markup{})
}

// SayWith sends a text with a keyboard.
func (s *Scope) SayWith(ctx context.Context, text string, m Markup) error {
	if err := s.replier.SendText(ctx, text, m); err != nil {
		return fmt.Errorf("%w: %w", errSend, err)
	}
	return nil
}

// SendDocument uploads a rendered document.
func (s *Scope) SendDocument(ctx context.Context, doc render.Document) error {
	if err := s.replier.SendDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: %w", errSend, err)
	}
	return nil
}

// Set stores a scratch value for the rest of the conversation.
func (s *Scope) Set(key string, v any) {
	s.engine.sessions.SetTemp(s.Event.SenderID, key, v)
}

// Unset removes a scratch value.
func (s *Scope) Unset(key string) {
	s.engine.sessions.ClearTemp(s.Event.SenderID, key)
}

// String returns a scratch string or "".
func (s *Scope) String(key string) string {
	v, _ := s.engine.sessions.GetTempString(s.Event.SenderID, key)
	return v
}

// Int returns a scratch int or 0.
func (s *Scope) Int(key string) int {
	v, _ := s.engine.sessions.GetTempInt(s.Event.SenderID, key)
	return v
}
