package lead

import (
	"testing"
	"time"
)

func TestLastBotQuestion(t *testing.T) {
	c := NewConversation()
	if got := c.LastBotQuestion(); got != "" {
		t.Fatalf("empty log: want no question, got %q", got)
	}

	c.Messages = append(c.Messages,
		Message{Role: RoleAssistant, Sender: SenderBot, Content: "¡Hola! Soy Juan.\n¿Me puedes compartir tu nombre?"},
		Message{Role: RoleUser, Sender: SenderLead, Content: "Paco"},
	)
	if got := c.LastBotQuestion(); got != "¿Me puedes compartir tu nombre?" {
		t.Errorf("want the question line, got %q", got)
	}

	// An assistant entry without a question mark is returned whole.
	c.Messages = append(c.Messages,
		Message{Role: RoleAssistant, Sender: SenderBot, Content: "Perfecto, lo anoto."},
	)
	if got := c.LastBotQuestion(); got != "Perfecto, lo anoto." {
		t.Errorf("want the full entry, got %q", got)
	}
}

func TestHasMessageID(t *testing.T) {
	c := NewConversation()
	for _, id := range []string{"a", "b", "c", "d"} {
		c.Messages = append(c.Messages, Message{Role: RoleUser, WhatsAppMessageID: id})
	}

	if !c.HasMessageID("d", 3) {
		t.Error("id within the window should match")
	}
	if c.HasMessageID("a", 3) {
		t.Error("id outside the window must not match")
	}
	if c.HasMessageID("", 3) {
		t.Error("empty id never matches")
	}
	if c.HasMessageID("z", 3) {
		t.Error("unknown id must not match")
	}
}

func TestLastAgentMessageAt(t *testing.T) {
	c := NewConversation()
	if !c.LastAgentMessageAt().IsZero() {
		t.Fatal("no agent messages: want zero time")
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.Messages = append(c.Messages,
		Message{Role: RoleAssistant, Sender: SenderAgent, Timestamp: at},
		Message{Role: RoleUser, Sender: SenderLead, Timestamp: at.Add(time.Minute)},
	)
	if got := c.LastAgentMessageAt(); !got.Equal(at) {
		t.Errorf("want %v, got %v", at, got)
	}
}
