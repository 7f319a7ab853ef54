// Package files provides typed CRUD over the files table.
package files

import (
	"context"

	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// Repository is the metadata-store capability for file records. All
// mutating methods scope by owner so one account can never touch
// another's rows.
type Repository interface {
	// Insert persists new records in chunks and returns how many rows
	// were written.
	Insert(ctx context.Context, records []*models.FileRecord) (int, error)

	GetByID(ctx context.Context, id, owner string) (*models.FileRecord, error)
	List(ctx context.Context, filter models.FileFilter, limit, offset int) ([]*models.FileRecord, error)
	Count(ctx context.Context, filter models.FileFilter) (int64, error)

	// ListUnsynced returns the upload coordinator's work queue.
	ListUnsynced(ctx context.Context, owner string) ([]*models.FileRecord, error)
	// ListSynced feeds the bulk storage verification pass.
	ListSynced(ctx context.Context, owner string) ([]*models.FileRecord, error)

	// FindSyncedDuplicate looks for another record with the same owner and
	// content hash that already synced. Returns nil when none exists.
	FindSyncedDuplicate(ctx context.Context, owner, hash, excludeID string) (*models.FileRecord, error)

	// KnownHashes returns the set of content hashes already recorded for
	// the owner; persisted dedup authority for the scanner.
	KnownHashes(ctx context.Context, owner string) (map[string]struct{}, error)

	MarkSynced(ctx context.Context, id, owner, remotePath, remoteURL string) error
	MarkSyncError(ctx context.Context, id, owner, message string) error
	IncrementAttempts(ctx context.Context, id, owner string) error
	SetSender(ctx context.Context, id, owner, sender string) error

	// ResetSyncStatus flips the listed records back to not_synced. Only the
	// caller-requested force-resync remediation pass uses this.
	ResetSyncStatus(ctx context.Context, owner string, ids []string) error

	Stats(ctx context.Context, owner string) (*models.FileStats, error)
	Delete(ctx context.Context, id, owner string) error
}
