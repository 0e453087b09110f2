package store

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/danielmdadu/leadagent/lead"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

func sampleConversation() *lead.Conversation {
	c := lead.NewConversation()
	c.Record.Name = "Paco Perez"
	c.Record.Surname = "Perez"
	c.Record.MachineryType = leadschema.MachineryWelder
	c.Record.MachineryDetails["amperaje"] = "200"
	c.CRMContactID = "hs-123"
	c.Messages = append(c.Messages,
		lead.Message{
			Role: lead.RoleUser, Content: "soy Paco Perez", Sender: lead.SenderLead,
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), WhatsAppMessageID: "wamid.1",
		},
		lead.Message{
			Role: lead.RoleAssistant, Content: "¿Qué tipo de maquinaria requiere?", Sender: lead.SenderBot,
			Timestamp: time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC), QuestionType: leadschema.FieldMachineryType,
		},
	)
	return c
}

func assertRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "521000")
	if err != nil || got != nil {
		t.Fatalf("unknown id: want (nil, nil), got (%v, %v)", got, err)
	}

	orig := sampleConversation()
	if err := s.Save(ctx, "521000", orig); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err = s.Get(ctx, "521000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("saved conversation not found")
	}
	if got.Record.Name != "Paco Perez" || got.Record.MachineryType != leadschema.MachineryWelder {
		t.Errorf("record did not round-trip: %+v", got.Record)
	}
	if got.Record.MachineryDetails["amperaje"] != "200" {
		t.Errorf("detail map did not round-trip: %+v", got.Record.MachineryDetails)
	}
	if got.CRMContactID != "hs-123" || got.Mode != lead.ModeBot {
		t.Errorf("session fields did not round-trip: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[1].QuestionType != leadschema.FieldMachineryType {
		t.Errorf("message log did not round-trip: %+v", got.Messages)
	}

	// Mutating the loaded copy must not leak into the stored version.
	got.Record.Name = "Alguien Mas"
	again, err := s.Get(ctx, "521000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Record.Name != "Paco Perez" {
		t.Error("loaded copies share state with the store")
	}

	if err := s.Delete(ctx, "521000"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = s.Get(ctx, "521000")
	if err != nil || got != nil {
		t.Fatalf("after delete: want (nil, nil), got (%v, %v)", got, err)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemory())
}

func openTestGorm(t *testing.T) *Gorm {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	s, err := NewGorm(db, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewGorm: %v", err)
	}
	return s
}

func TestGormRoundTrip(t *testing.T) {
	assertRoundTrip(t, openTestGorm(t))
}

func TestGormIncrementalSave(t *testing.T) {
	s := openTestGorm(t)
	ctx := context.Background()

	c := sampleConversation()
	if err := s.Save(ctx, "521000", c); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// Advance the conversation: one new field, one new log entry.
	c.Record.CompanyName = "Constructora ABC"
	c.Messages = append(c.Messages, lead.Message{
		Role: lead.RoleUser, Content: "Constructora ABC", Sender: lead.SenderLead,
		Timestamp: time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC), WhatsAppMessageID: "wamid.2",
	})
	if err := s.Save(ctx, "521000", c); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Get(ctx, "521000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Record.CompanyName != "Constructora ABC" {
		t.Errorf("patched field missing: %+v", got.Record)
	}
	if got.Record.Name != "Paco Perez" {
		t.Errorf("patch clobbered an untouched field: %+v", got.Record)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("message count = %d, want 3", len(got.Messages))
	}

	// Saving an unchanged conversation must not duplicate log entries.
	if err := s.Save(ctx, "521000", got); err != nil {
		t.Fatalf("idempotent Save: %v", err)
	}
	got, err = s.Get(ctx, "521000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Errorf("idempotent save duplicated messages: %d", len(got.Messages))
	}
}

func TestGormUnchangedSaveSkipsStateWrite(t *testing.T) {
	s := openTestGorm(t)
	ctx := context.Background()

	c := sampleConversation()
	if err := s.Save(ctx, "521000", c); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	stateRow := func() conversationRow {
		var row conversationRow
		if err := s.db.First(&row, "wa_id = ?", "521000").Error; err != nil {
			t.Fatalf("read state row: %v", err)
		}
		return row
	}
	before := stateRow()

	if err := s.Save(ctx, "521000", c); err != nil {
		t.Fatalf("unchanged Save: %v", err)
	}
	after := stateRow()
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("unchanged save rewrote the state row")
	}

	c.Record.Location = "Jalisco"
	if err := s.Save(ctx, "521000", c); err != nil {
		t.Fatalf("changed Save: %v", err)
	}
	after = stateRow()
	if !strings.Contains(string(after.State), "Jalisco") {
		t.Errorf("changed save did not persist the new field: %s", after.State)
	}
}
