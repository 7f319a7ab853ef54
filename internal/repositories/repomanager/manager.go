// Package repomanager wires repository constructors together with database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/nileshh/whatsapp-media-sync/internal/dbx"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/files"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/sessions"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook.
type RepositoryManager interface {
	Files(db dbx.DBTX) files.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
