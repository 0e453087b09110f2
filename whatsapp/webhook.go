package whatsapp

import (
	"errors"

	"github.com/bytedance/sonic"
)

// ErrNotWhatsAppEvent marks payloads that are not Cloud API message
// notifications.
var ErrNotWhatsAppEvent = errors.New("not a whatsapp api event")

// webhookBody mirrors the slice of the Cloud API notification payload the
// bot cares about.
type webhookBody struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Statuses []any `json:"statuses"`
				Contacts []struct {
					WAID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Inbound is one parsed user message. Type is "text" for text messages;
// any other value means unsupported content (image, audio, document).
type Inbound struct {
	WAID      string
	MessageID string
	Type      string
	Text      string
}

// ParseWebhook decodes a notification payload. Status-update notifications
// return (nil, nil): acknowledged but carrying no message.
func ParseWebhook(body []byte) (*Inbound, error) {
	var b webhookBody
	if err := sonic.Unmarshal(body, &b); err != nil {
		return nil, err
	}
	if b.Object == "" || len(b.Entry) == 0 || len(b.Entry[0].Changes) == 0 {
		return nil, ErrNotWhatsAppEvent
	}
	value := b.Entry[0].Changes[0].Value
	if len(value.Statuses) > 0 {
		return nil, nil
	}
	if len(value.Messages) == 0 || len(value.Contacts) == 0 {
		return nil, ErrNotWhatsAppEvent
	}
	msg := value.Messages[0]
	return &Inbound{
		WAID:      value.Contacts[0].WAID,
		MessageID: msg.ID,
		Type:      msg.Type,
		Text:      msg.Text.Body,
	}, nil
}
