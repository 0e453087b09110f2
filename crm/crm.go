// Package crm mirrors qualified-lead data into an external CRM. Sync is
// best-effort: the session logs failures and the conversation always
// continues.
package crm

import (
	"context"

	"github.com/danielmdadu/leadagent/lead"
)

// Syncer is the contact lifecycle the session drives. UpdateContact
// receives the post-merge record plus the update that triggered the sync,
// so implementations only push the fields that changed this turn.
type Syncer interface {
	CreateContact(ctx context.Context, waID, phone string) (string, error)
	UpdateContact(ctx context.Context, contactID string, r *lead.Record, u lead.Update) error
	DeleteContact(ctx context.Context, contactID string) error
}

// Noop is used when no CRM is configured.
type Noop struct{}

func (Noop) CreateContact(context.Context, string, string) (string, error) { return "", nil }

func (Noop) UpdateContact(context.Context, string, *lead.Record, lead.Update) error { return nil }

func (Noop) DeleteContact(context.Context, string) error { return nil }
