package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"gorm.io/gorm"

	"github.com/danielmdadu/leadagent/lead"
)

// conversationRow holds the slot-filling state of one correspondent as a
// JSON document. The message log lives in its own append-only table.
type conversationRow struct {
	WAID      string `gorm:"column:wa_id;primaryKey"`
	State     []byte `gorm:"column:state"`
	UpdatedAt time.Time
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	ID                uint   `gorm:"primaryKey"`
	WAID              string `gorm:"column:wa_id;index"`
	Seq               int
	Role              string
	Content           string
	Sender            string
	Timestamp         time.Time
	WhatsAppMessageID string `gorm:"column:whatsapp_message_id"`
	QuestionType      string
}

func (messageRow) TableName() string { return "messages" }

// stateDoc is the serialized shape of a conversation minus its log.
type stateDoc struct {
	Record        *lead.Record `json:"record"`
	Mode          lead.Mode    `json:"conversation_mode"`
	AssignedAgent string       `json:"asignado_asesor,omitempty"`
	CRMContactID  string       `json:"crm_contact_id,omitempty"`
}

// Gorm persists conversations in two tables: a state document updated via
// JSON merge patches, and an append-only message log.
type Gorm struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewGorm(db *gorm.DB, logger *slog.Logger) (*Gorm, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}); err != nil {
		return nil, err
	}
	return &Gorm{db: db, log: logger}, nil
}

func (g *Gorm) Get(ctx context.Context, id string) (*lead.Conversation, error) {
	var row conversationRow
	err := g.db.WithContext(ctx).First(&row, "wa_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var doc stateDoc
	if err := sonic.Unmarshal(row.State, &doc); err != nil {
		return nil, err
	}
	if doc.Record == nil {
		doc.Record = lead.NewRecord()
	}
	if doc.Record.MachineryDetails == nil {
		doc.Record.MachineryDetails = map[string]string{}
	}

	var rows []messageRow
	if err := g.db.WithContext(ctx).Where("wa_id = ?", id).Order("seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	messages := make([]lead.Message, 0, len(rows))
	for _, m := range rows {
		messages = append(messages, lead.Message{
			Role:              m.Role,
			Content:           m.Content,
			Timestamp:         m.Timestamp,
			Sender:            m.Sender,
			WhatsAppMessageID: m.WhatsAppMessageID,
			QuestionType:      m.QuestionType,
		})
	}

	return &lead.Conversation{
		Record:        doc.Record,
		Messages:      messages,
		Mode:          doc.Mode,
		AssignedAgent: doc.AssignedAgent,
		CRMContactID:  doc.CRMContactID,
	}, nil
}

// Save diffs the state document against the stored version and rewrites
// the state column only when the document actually changed; log entries
// the stored copy does not have yet are appended.
func (g *Gorm) Save(ctx context.Context, id string, c *lead.Conversation) error {
	newState, err := sonic.Marshal(stateDoc{
		Record:        c.Record,
		Mode:          c.Mode,
		AssignedAgent: c.AssignedAgent,
		CRMContactID:  c.CRMContactID,
	})
	if err != nil {
		return err
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		err := tx.First(&row, "wa_id = ?", id).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&conversationRow{WAID: id, State: newState}).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			// The merge patch is the change detector: "{}" means the
			// document is identical and the write is skipped.
			patch, err := jsonpatch.CreateMergePatch(row.State, newState)
			if err != nil {
				// The stored document is not valid JSON; overwrite it.
				g.log.Warn("state diff failed, rewriting state", "wa_id", id, "error", err)
				patch = nil
			}
			if patch == nil || len(patch) > 2 {
				update := tx.Model(&conversationRow{}).Where("wa_id = ?", id).
					Update("state", newState)
				if update.Error != nil {
					return update.Error
				}
				g.log.Debug("state updated", "wa_id", id, "changed_bytes", len(patch))
			}
		}

		var stored int64
		if err := tx.Model(&messageRow{}).Where("wa_id = ?", id).Count(&stored).Error; err != nil {
			return err
		}
		for i := int(stored); i < len(c.Messages); i++ {
			m := c.Messages[i]
			row := messageRow{
				WAID:              id,
				Seq:               i,
				Role:              m.Role,
				Content:           m.Content,
				Sender:            m.Sender,
				Timestamp:         m.Timestamp,
				WhatsAppMessageID: m.WhatsAppMessageID,
				QuestionType:      m.QuestionType,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *Gorm) Delete(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&conversationRow{}, "wa_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&messageRow{}, "wa_id = ?", id).Error
	})
}
