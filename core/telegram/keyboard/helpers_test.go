package keyboard

import "testing"

func TestOneTimeChoices(t *testing.T) {
	m := OneTimeChoices([]string{"United States", "United Kingdom", "Australia"}, 2)
	if !m.OneTimeKeyboard || !m.ResizeKeyboard {
		t.Fatalf("flags: one_time=%v resize=%v", m.OneTimeKeyboard, m.ResizeKeyboard)
	}
	if len(m.ReplyKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.ReplyKeyboard))
	}
	if got := m.ReplyKeyboard[1][0].Text; got != "Australia" {
		t.Fatalf("last choice = %q", got)
	}
}

func TestInlineButtons(t *testing.T) {
	m := InlineButtons([]InlineBtn{
		{Text: "Add", Unique: "conv", Data: "add"},
		{Text: "Delete", Unique: "conv", Data: "delete"},
	})
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(m.InlineKeyboard))
	}
	btn := m.InlineKeyboard[1][0]
	if btn.Text != "Delete" || btn.Unique != "conv" || btn.Data != "delete" {
		t.Fatalf("button = %+v", btn)
	}
}
