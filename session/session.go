// Package session orchestrates one inbound message end to end: load the
// conversation, screen it, extract and merge new slot values, sync the
// CRM, pick the reply, and persist. Each message is an independent unit
// of work over its own working copy of the conversation.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielmdadu/leadagent/crm"
	"github.com/danielmdadu/leadagent/dialogue"
	"github.com/danielmdadu/leadagent/events"
	"github.com/danielmdadu/leadagent/guard"
	"github.com/danielmdadu/leadagent/lead"
	leadschema "github.com/danielmdadu/leadagent/schema"
	"github.com/danielmdadu/leadagent/store"
	"github.com/danielmdadu/leadagent/whatsapp"
)

// How many trailing log entries are checked for a redelivered message id.
const duplicateWindow = 3

// DefaultAgentTimeout reverts an idle human-agent conversation to bot
// mode.
const DefaultAgentTimeout = 30 * time.Minute

const (
	technicalErrorReply = "Disculpa, hubo un problema técnico. ¿Podrías repetir tu mensaje?"
	clarificationReply  = "No me queda claro lo que dices. ¿Podrías explicarme mejor?"
	multimediaReply     = "Por el momento solo puedo procesar mensajes de texto. ¿Me lo puedes escribir?"
	closingReply        = "Gracias por toda la información. Estoy procesando su solicitud."
	resetReply          = "Conversación reiniciada. Puedes comenzar de nuevo."
)

// Extractor is the slot-extraction capability the session drives.
type Extractor interface {
	Extract(ctx context.Context, message string, r *lead.Record, lastQuestion string) lead.Update
}

// Responder composes the outbound reply for one turn.
type Responder interface {
	Compose(ctx context.Context, in *dialogue.Input) string
}

// InventoryClassifier flags catalogue questions.
type InventoryClassifier interface {
	IsInventoryQuestion(ctx context.Context, message string) bool
}

// Deps wires the session's collaborators. Store, Extractor and Responder
// are required; the rest default to no-ops.
type Deps struct {
	Store     store.Store
	Extractor Extractor
	Responder Responder
	Inventory InventoryClassifier
	Gate      guard.Gate
	CRM       crm.Syncer
	Events    events.Publisher

	// Allowed is the correspondent allow-list. Empty allows everyone.
	Allowed []string

	AgentTimeout time.Duration
	Clock        func() time.Time
	Log          *slog.Logger
}

// Manager processes messages for all correspondents.
type Manager struct {
	deps   Deps
	merger *lead.Merger
}

func NewManager(deps Deps) *Manager {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Gate == nil {
		deps.Gate = guard.Noop{}
	}
	if deps.CRM == nil {
		deps.CRM = crm.Noop{}
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.AgentTimeout <= 0 {
		deps.AgentTimeout = DefaultAgentTimeout
	}
	return &Manager{deps: deps, merger: lead.NewMerger(deps.Log)}
}

func (m *Manager) authorized(waID string) bool {
	if len(m.deps.Allowed) == 0 {
		return true
	}
	for _, id := range m.deps.Allowed {
		if id == waID {
			return true
		}
	}
	return false
}

// HandleMessage runs the full pipeline for one inbound text message and
// returns the reply to send, or "" when no reply is due (unauthorized
// sender, duplicate delivery, agent mode).
func (m *Manager) HandleMessage(ctx context.Context, waID, text, messageID string) (reply string) {
	if !m.authorized(waID) {
		m.deps.Log.Warn("unauthorized correspondent dropped", "wa_id", waID)
		return ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	// One broken turn must not take the webhook down or corrupt state:
	// nothing is persisted past the point of failure.
	defer func() {
		if r := recover(); r != nil {
			m.deps.Log.Error("message processing panicked", "wa_id", waID, "panic", r)
			reply = technicalErrorReply
		}
	}()

	switch strings.ToLower(text) {
	case "reset":
		return m.handleReset(ctx, waID)
	case "status":
		return m.handleStatus(ctx, waID)
	}

	conv, err := m.loadOrCreate(ctx, waID)
	if err != nil {
		m.deps.Log.Error("load conversation failed", "wa_id", waID, "error", err)
		return technicalErrorReply
	}

	if conv.HasMessageID(messageID, duplicateWindow) {
		m.deps.Log.Info("duplicate delivery dropped", "wa_id", waID, "wamid", messageID)
		return ""
	}

	m.revertExpiredAgentMode(conv, waID)

	now := m.deps.Clock().UTC()
	questionType := ""
	if res := m.deps.Gate.Check(ctx, text); res != nil {
		if res.Blocking() {
			return m.rejectUnsafe(ctx, waID, conv, res, messageID, now)
		}
		m.deps.Log.Warn("off-domain message, slot-filling continues", "wa_id", waID)
		questionType = guard.TypeInvalidConversation
	}

	greeting := len(conv.Messages) == 0
	lastQuestion := conv.LastBotQuestion()
	conv.Messages = append(conv.Messages, lead.Message{
		Role:              lead.RoleUser,
		Content:           text,
		Timestamp:         now,
		Sender:            lead.SenderLead,
		WhatsAppMessageID: messageID,
		QuestionType:      questionType,
	})

	update := m.deps.Extractor.Extract(ctx, text, conv.Record, lastQuestion)
	m.merger.Apply(conv.Record, update)
	m.syncCRM(ctx, waID, conv, update)

	if conv.Mode == lead.ModeAgent {
		// A human owns the thread; slot-filling ran silently.
		if err := m.deps.Store.Save(ctx, waID, conv); err != nil {
			m.deps.Log.Error("save conversation failed", "wa_id", waID, "error", err)
		}
		return ""
	}

	inventory := false
	if m.deps.Inventory != nil {
		inventory = m.deps.Inventory.IsInventoryQuestion(ctx, text)
	}

	reply, fieldID := m.pickReply(ctx, waID, conv, text, update, inventory, greeting)

	conv.Messages = append(conv.Messages, lead.Message{
		Role:         lead.RoleAssistant,
		Content:      reply,
		Timestamp:    m.deps.Clock().UTC(),
		Sender:       lead.SenderBot,
		QuestionType: fieldID,
	})
	if err := m.deps.Store.Save(ctx, waID, conv); err != nil {
		m.deps.Log.Error("save conversation failed", "wa_id", waID, "error", err)
	}
	return reply
}

// pickReply decides between the completion summary, the schema-exhausted
// closing, and a composed reply around the next question.
func (m *Manager) pickReply(ctx context.Context, waID string, conv *lead.Conversation, text string, update lead.Update, inventory, greeting bool) (string, string) {
	if lead.IsComplete(conv.Record) {
		wasComplete := conv.Record.Completed
		conv.Record.Completed = true
		if !wasComplete {
			m.publishQualified(ctx, waID, conv)
		}
		return dialogue.CompletionMessage(conv.Record), "completed"
	}

	q := lead.Next(conv.Record)
	if q == nil {
		// Every slot holds at least a sentinel; nothing left to ask.
		conv.Record.Completed = true
		return closingReply, "completed"
	}

	reply := m.deps.Responder.Compose(ctx, &dialogue.Input{
		Message:           text,
		Record:            conv.Record,
		Extracted:         update,
		NextQuestion:      q,
		InventoryQuestion: inventory,
		Greeting:          greeting,
	})
	return reply, q.FieldID
}

// rejectUnsafe logs the violation and the canned clarification into the
// conversation and answers without running slot-filling.
func (m *Manager) rejectUnsafe(ctx context.Context, waID string, conv *lead.Conversation, res *guard.Result, messageID string, now time.Time) string {
	m.deps.Log.Warn("message rejected by safety gate", "wa_id", waID, "type", res.Type)
	conv.Messages = append(conv.Messages,
		lead.Message{
			Role:              lead.RoleUser,
			Content:           res.Message,
			Timestamp:         now,
			Sender:            lead.SenderLead,
			WhatsAppMessageID: messageID,
			QuestionType:      res.Type,
		},
		lead.Message{
			Role:      lead.RoleAssistant,
			Content:   clarificationReply,
			Timestamp: now,
			Sender:    lead.SenderBot,
		},
	)
	if err := m.deps.Store.Save(ctx, waID, conv); err != nil {
		m.deps.Log.Error("save conversation failed", "wa_id", waID, "error", err)
	}
	return clarificationReply
}

// revertExpiredAgentMode flips an agent-owned conversation back to bot
// mode once the agent has been silent past the timeout.
func (m *Manager) revertExpiredAgentMode(conv *lead.Conversation, waID string) {
	if conv.Mode != lead.ModeAgent {
		return
	}
	last := conv.LastAgentMessageAt()
	if last.IsZero() || m.deps.Clock().Sub(last) > m.deps.AgentTimeout {
		conv.Mode = lead.ModeBot
		conv.AssignedAgent = ""
		m.deps.Log.Info("agent timeout, conversation back to bot mode", "wa_id", waID)
	}
}

// syncCRM creates the contact on first touch and pushes this turn's
// update. Failures are logged and never block the conversation.
func (m *Manager) syncCRM(ctx context.Context, waID string, conv *lead.Conversation, update lead.Update) {
	if conv.CRMContactID == "" {
		id, err := m.deps.CRM.CreateContact(ctx, waID, whatsapp.NormalizeMexicanNumber(waID))
		if err != nil {
			m.deps.Log.Warn("crm contact creation failed", "wa_id", waID, "error", err)
			return
		}
		conv.CRMContactID = id
	}
	if update.IsEmpty() || conv.CRMContactID == "" {
		return
	}
	if err := m.deps.CRM.UpdateContact(ctx, conv.CRMContactID, conv.Record, update); err != nil {
		m.deps.Log.Warn("crm contact update failed", "wa_id", waID, "error", err)
	}
}

func (m *Manager) publishQualified(ctx context.Context, waID string, conv *lead.Conversation) {
	err := m.deps.Events.Publish(ctx, events.KeyLeadQualified, events.QualifiedLead{
		WAID:   waID,
		Record: conv.Record,
	})
	if err != nil {
		m.deps.Log.Warn("publish lead.qualified failed", "wa_id", waID, "error", err)
	}
}

// handleReset discards the conversation, its CRM contact, and announces
// the reset.
func (m *Manager) handleReset(ctx context.Context, waID string) string {
	conv, err := m.deps.Store.Get(ctx, waID)
	if err != nil {
		m.deps.Log.Error("load conversation failed", "wa_id", waID, "error", err)
		return technicalErrorReply
	}
	if conv != nil && conv.CRMContactID != "" {
		if err := m.deps.CRM.DeleteContact(ctx, conv.CRMContactID); err != nil {
			m.deps.Log.Warn("crm contact deletion failed", "wa_id", waID, "error", err)
		}
	}
	if err := m.deps.Store.Delete(ctx, waID); err != nil {
		m.deps.Log.Error("delete conversation failed", "wa_id", waID, "error", err)
		return technicalErrorReply
	}
	if err := m.deps.Events.Publish(ctx, events.KeyLeadReset, events.Reset{WAID: waID}); err != nil {
		m.deps.Log.Warn("publish lead.reset failed", "wa_id", waID, "error", err)
	}
	m.deps.Log.Info("conversation reset", "wa_id", waID)
	return resetReply
}

func (m *Manager) handleStatus(ctx context.Context, waID string) string {
	conv, err := m.deps.Store.Get(ctx, waID)
	if err != nil {
		m.deps.Log.Error("load conversation failed", "wa_id", waID, "error", err)
		return technicalErrorReply
	}
	if conv == nil {
		conv = lead.NewConversation()
	}
	return statusReply(waID, conv)
}

func statusReply(waID string, conv *lead.Conversation) string {
	r := conv.Record
	val := func(v string) string {
		if v == "" {
			return leadschema.SentinelUnspecified
		}
		return v
	}
	completed := "No"
	if r.Completed {
		completed = "Sí"
	}
	var b strings.Builder
	b.WriteString("ESTADO DE CONVERSACIÓN:\n")
	fmt.Fprintf(&b, "Usuario: %s\n", waID)
	fmt.Fprintf(&b, "Completada: %s\n", completed)
	fmt.Fprintf(&b, "Nombre: %s\n", val(r.Name))
	fmt.Fprintf(&b, "Apellido: %s\n", val(r.Surname))
	fmt.Fprintf(&b, "Tipo maquinaria: %s\n", val(string(r.MachineryType)))
	fmt.Fprintf(&b, "Detalles maquinaria: %v\n", r.MachineryDetails)
	fmt.Fprintf(&b, "Nombre empresa: %s\n", val(r.CompanyName))
	fmt.Fprintf(&b, "Giro empresa: %s\n", val(r.CompanySector))
	fmt.Fprintf(&b, "Lugar requerimiento: %s\n", val(r.Location))
	fmt.Fprintf(&b, "Uso: %s\n", val(r.Usage))
	fmt.Fprintf(&b, "Sitio web: %s\n", val(r.Website))
	fmt.Fprintf(&b, "Correo: %s\n", val(r.Email))
	fmt.Fprintf(&b, "Teléfono: %s\n", val(r.Phone))
	fmt.Fprintf(&b, "Total mensajes: %d\n", len(conv.Messages))
	fmt.Fprintf(&b, "Modo: %s", conv.Mode)
	return b.String()
}

// HandleAgentMessage records a human agent's outbound message and flips
// the conversation into agent mode. Sending is the caller's job.
func (m *Manager) HandleAgentMessage(ctx context.Context, waID, agentID, text string) error {
	conv, err := m.loadOrCreate(ctx, waID)
	if err != nil {
		return err
	}
	if conv.Mode != lead.ModeAgent {
		conv.Mode = lead.ModeAgent
		m.deps.Log.Info("conversation handed to agent", "wa_id", waID, "agent", agentID)
	}
	conv.AssignedAgent = agentID
	conv.Messages = append(conv.Messages, lead.Message{
		Role:      lead.RoleAssistant,
		Content:   text,
		Timestamp: m.deps.Clock().UTC(),
		Sender:    lead.SenderAgent,
	})
	return m.deps.Store.Save(ctx, waID, conv)
}

// HandleMultimedia logs an unsupported-content message and returns the
// canned help reply.
func (m *Manager) HandleMultimedia(ctx context.Context, waID, messageID, mediaType string) string {
	if !m.authorized(waID) {
		return ""
	}
	conv, err := m.loadOrCreate(ctx, waID)
	if err != nil {
		m.deps.Log.Error("load conversation failed", "wa_id", waID, "error", err)
		return technicalErrorReply
	}
	if conv.HasMessageID(messageID, duplicateWindow) {
		return ""
	}
	now := m.deps.Clock().UTC()
	conv.Messages = append(conv.Messages,
		lead.Message{
			Role:              lead.RoleUser,
			Content:           "(contenido multimedia: " + mediaType + ")",
			Timestamp:         now,
			Sender:            lead.SenderLead,
			WhatsAppMessageID: messageID,
		},
		lead.Message{
			Role:      lead.RoleAssistant,
			Content:   multimediaReply,
			Timestamp: now,
			Sender:    lead.SenderBot,
		},
	)
	if err := m.deps.Store.Save(ctx, waID, conv); err != nil {
		m.deps.Log.Error("save conversation failed", "wa_id", waID, "error", err)
	}
	if conv.Mode == lead.ModeAgent {
		return ""
	}
	return multimediaReply
}

func (m *Manager) loadOrCreate(ctx context.Context, waID string) (*lead.Conversation, error) {
	conv, err := m.deps.Store.Get(ctx, waID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		conv = lead.NewConversation()
	}
	return conv, nil
}
