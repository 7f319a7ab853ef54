// Package sessions provides typed CRUD over the sessions table.
package sessions

import (
	"context"

	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// Repository persists session records. The browser handle itself is never
// stored; only the state machine's transitions and transient payload are.
type Repository interface {
	// Create inserts a record and fills in its generated ID.
	Create(ctx context.Context, record *models.SessionRecord) error

	GetByID(ctx context.Context, id string) (*models.SessionRecord, error)

	// FindActive returns the owner's session currently in qr_pending or
	// authenticated, or nil when there is none.
	FindActive(ctx context.Context, owner string) (*models.SessionRecord, error)

	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error

	// MergePayload merges the given keys into the session payload,
	// preserving existing entries it does not overwrite.
	MergePayload(ctx context.Context, id string, data map[string]any) error
}
