package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
	"github.com/nileshh/whatsapp-media-sync/internal/dbx"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

const sessionColumns = `id, owner, kind, device_name, status, payload, expires_at, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, record *models.SessionRecord) error {
	payload, err := marshalPayload(record.Payload)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (owner, kind, device_name, status, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		record.Owner, record.Kind, record.DeviceName, record.Status, payload, record.ExpiresAt).
		Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id=$1`
	rec, err := r.scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepository) FindActive(ctx context.Context, owner string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE owner=$1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`
	rec, err := r.scanSession(r.db.QueryRowContext(ctx, query, owner,
		models.SessionQRPending, models.SessionAuthenticated))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	query := `UPDATE sessions SET status=$1, updated_at=now() WHERE id=$2`
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// MergePayload reads the current payload, merges the new keys in Go, and
// writes the merged document back. Last writer wins per key; payloads are
// small (a QR image and a few hints), so read-merge-write is fine.
func (r *PostgresRepository) MergePayload(ctx context.Context, id string, data map[string]any) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	merged := make(map[string]any, len(current.Payload)+len(data))
	for k, v := range current.Payload {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}

	payload, err := marshalPayload(merged)
	if err != nil {
		return err
	}

	query := `UPDATE sessions SET payload=$1, updated_at=now() WHERE id=$2`
	if _, err := r.db.ExecContext(ctx, query, payload, id); err != nil {
		return fmt.Errorf("update session payload: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanSession(row *sql.Row) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var payload []byte
	err := row.Scan(&rec.ID, &rec.Owner, &rec.Kind, &rec.DeviceName, &rec.Status,
		&payload, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode session payload: %w", err)
		}
	}
	if rec.Payload == nil {
		rec.Payload = map[string]any{}
	}
	return &rec, nil
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode session payload: %w", err)
	}
	return b, nil
}
