// Package lead implements the slot-filling state machine: the lead record,
// the merge policy that folds extraction results into it, the next-question
// selector, and the completion checker. Everything here is deterministic;
// LLM calls live in the extract and dialogue packages.
package lead

import (
	"strings"
	"time"

	"github.com/danielmdadu/leadagent/schema"
)

// Mode is the conversation mode: the bot answers automatically, or a human
// agent owns the thread while slot-filling keeps running silently.
type Mode string

const (
	ModeBot   Mode = "bot"
	ModeAgent Mode = "agente"
)

// Message roles and senders as stored in the append-only log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	SenderLead  = "lead"
	SenderBot   = "bot"
	SenderAgent = "agente"
)

// Message is one append-only log entry. The log is the conversation's audit
// trail and is never mutated.
type Message struct {
	Role              string    `json:"role"`
	Content           string    `json:"content"`
	Timestamp         time.Time `json:"timestamp"`
	Sender            string    `json:"sender"`
	WhatsAppMessageID string    `json:"whatsapp_message_id,omitempty"`
	QuestionType      string    `json:"question_type,omitempty"`
}

// Record is the accumulated lead state. Scalar fields are empty until
// extracted; MachineryDetails is merged key by key as the lead answers the
// per-type detail questions.
type Record struct {
	Name             string               `json:"nombre,omitempty"`
	Surname          string               `json:"apellido,omitempty"`
	MachineryType    schema.MachineryType `json:"tipo_maquinaria,omitempty"`
	MachineryDetails map[string]string    `json:"detalles_maquinaria,omitempty"`
	CompanyName      string               `json:"nombre_empresa,omitempty"`
	CompanySector    string               `json:"giro_empresa,omitempty"`
	Location         string               `json:"lugar_requerimiento,omitempty"`
	Usage            string               `json:"uso_empresa_o_venta,omitempty"`
	Website          string               `json:"sitio_web,omitempty"`
	Email            string               `json:"correo,omitempty"`
	Phone            string               `json:"telefono,omitempty"`
	Completed        bool                 `json:"completed"`
}

// NewRecord returns an empty record with an allocated detail map.
func NewRecord() *Record {
	return &Record{MachineryDetails: map[string]string{}}
}

// FieldValue returns the value of a scalar registry field by name. The
// machinery-details slot is structured and has no scalar value.
func (r *Record) FieldValue(name string) string {
	switch name {
	case schema.FieldName:
		return r.Name
	case schema.FieldSurname:
		return r.Surname
	case schema.FieldMachineryType:
		return string(r.MachineryType)
	case schema.FieldCompanyName:
		return r.CompanyName
	case schema.FieldCompanySector:
		return r.CompanySector
	case schema.FieldLocation:
		return r.Location
	case schema.FieldUsage:
		return r.Usage
	case schema.FieldWebsite:
		return r.Website
	case schema.FieldEmail:
		return r.Email
	case schema.FieldPhone:
		return r.Phone
	}
	return ""
}

func (r *Record) setField(name, value string) {
	switch name {
	case schema.FieldName:
		r.Name = value
	case schema.FieldSurname:
		r.Surname = value
	case schema.FieldCompanyName:
		r.CompanyName = value
	case schema.FieldCompanySector:
		r.CompanySector = value
	case schema.FieldLocation:
		r.Location = value
	case schema.FieldUsage:
		r.Usage = value
	case schema.FieldWebsite:
		r.Website = value
	case schema.FieldEmail:
		r.Email = value
	case schema.FieldPhone:
		r.Phone = value
	}
}

// nameTokens counts the whitespace-separated tokens of the full name.
func (r *Record) nameTokens() int {
	return len(strings.Fields(r.Name))
}

// Update is the sparse result of one extraction turn: scalar registry
// fields plus machinery-detail sub-keys. Absent keys mean "nothing new".
type Update struct {
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// IsEmpty reports whether the update carries no information.
func (u Update) IsEmpty() bool {
	return len(u.Fields) == 0 && len(u.Details) == 0
}

// Conversation is the session aggregate the store persists under one
// correspondent id: the record, the message log, and the routing state.
type Conversation struct {
	Record        *Record   `json:"record"`
	Messages      []Message `json:"messages"`
	Mode          Mode      `json:"conversation_mode"`
	AssignedAgent string    `json:"asignado_asesor,omitempty"`
	CRMContactID  string    `json:"crm_contact_id,omitempty"`
}

// NewConversation returns an empty bot-mode conversation.
func NewConversation() *Conversation {
	return &Conversation{Record: NewRecord(), Mode: ModeBot}
}

// LastBotQuestion walks the log backward for the most recent
// assistant-authored entry containing a question mark. If one line of that
// entry holds the "?", that line is returned; otherwise the whole entry.
// Returns "" at conversation start.
func (c *Conversation) LastBotQuestion() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role != RoleAssistant {
			continue
		}
		if !strings.Contains(m.Content, "?") {
			return m.Content
		}
		lines := strings.Split(m.Content, "\n")
		for j := len(lines) - 1; j >= 0; j-- {
			line := strings.TrimSpace(lines[j])
			if line != "" && strings.Contains(line, "?") {
				return line
			}
		}
		return m.Content
	}
	return ""
}

// HasMessageID reports whether id matches one of the last n log entries.
// Used for transport duplicate-delivery protection.
func (c *Conversation) HasMessageID(id string, n int) bool {
	if id == "" {
		return false
	}
	for i := len(c.Messages) - 1; i >= 0 && i >= len(c.Messages)-n; i-- {
		if c.Messages[i].WhatsAppMessageID == id {
			return true
		}
	}
	return false
}

// LastAgentMessageAt returns the timestamp of the most recent
// agent-authored entry, or the zero time when there is none.
func (c *Conversation) LastAgentMessageAt() time.Time {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == SenderAgent {
			return c.Messages[i].Timestamp
		}
	}
	return time.Time{}
}
