package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
	"github.com/nileshh/whatsapp-media-sync/internal/dbx"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// insertBatchSize bounds a single multi-row INSERT payload.
const insertBatchSize = 50

const fileColumns = `id, owner, filename, local_path, organized_path, file_hash, size,
	mime_type, media_type, sender_id, sync_status, upload_attempts, last_error,
	remote_path, remote_url, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, records []*models.FileRecord) (int, error) {
	inserted := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		n, err := r.insertBatch(ctx, records[start:end])
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (r *PostgresRepository) insertBatch(ctx context.Context, batch []*models.FileRecord) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO files (owner, filename, local_path, organized_path, file_hash,
		size, mime_type, media_type, sender_id, sync_status) VALUES `)

	args := make([]any, 0, len(batch)*10)
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 10
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10)
		status := rec.SyncStatus
		if status == "" {
			status = models.SyncNotSynced
		}
		args = append(args, rec.Owner, rec.Filename, rec.LocalPath, rec.OrganizedPath,
			rec.FileHash, rec.Size, rec.MimeType, rec.MediaType, rec.SenderID, status)
	}

	res, err := r.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, owner string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1 AND owner=$2`
	rec, err := scanFile(r.db.QueryRowContext(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepository) List(ctx context.Context, filter models.FileFilter, limit, offset int) ([]*models.FileRecord, error) {
	where, args := buildFilter(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT `+fileColumns+` FROM files %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) Count(ctx context.Context, filter models.FileFilter) (int64, error) {
	where, args := buildFilter(filter)
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM files "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListUnsynced(ctx context.Context, owner string) ([]*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner=$1 AND sync_status <> $2 ORDER BY created_at`
	return r.queryFiles(ctx, query, owner, models.SyncSynced)
}

func (r *PostgresRepository) ListSynced(ctx context.Context, owner string) ([]*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner=$1 AND sync_status = $2 ORDER BY created_at`
	return r.queryFiles(ctx, query, owner, models.SyncSynced)
}

func (r *PostgresRepository) queryFiles(ctx context.Context, query string, args ...any) ([]*models.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *PostgresRepository) FindSyncedDuplicate(ctx context.Context, owner, hash, excludeID string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner=$1 AND file_hash=$2 AND sync_status=$3 AND id <> $4 LIMIT 1`
	rec, err := scanFile(r.db.QueryRowContext(ctx, query, owner, hash, models.SyncSynced, excludeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *PostgresRepository) KnownHashes(ctx context.Context, owner string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT file_hash FROM files WHERE owner=$1`, owner)
	if err != nil {
		return nil, fmt.Errorf("known hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes[h] = struct{}{}
	}
	return hashes, rows.Err()
}

func (r *PostgresRepository) MarkSynced(ctx context.Context, id, owner, remotePath, remoteURL string) error {
	query := `UPDATE files SET sync_status=$1, remote_path=$2, remote_url=$3, last_error='', updated_at=now()
		WHERE id=$4 AND owner=$5`
	return r.execOne(ctx, query, models.SyncSynced, remotePath, remoteURL, id, owner)
}

func (r *PostgresRepository) MarkSyncError(ctx context.Context, id, owner, message string) error {
	query := `UPDATE files SET sync_status=$1, last_error=$2, updated_at=now() WHERE id=$3 AND owner=$4`
	return r.execOne(ctx, query, models.SyncError, message, id, owner)
}

func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id, owner string) error {
	query := `UPDATE files SET upload_attempts = upload_attempts + 1, updated_at=now() WHERE id=$1 AND owner=$2`
	return r.execOne(ctx, query, id, owner)
}

func (r *PostgresRepository) SetSender(ctx context.Context, id, owner, sender string) error {
	query := `UPDATE files SET sender_id=$1, updated_at=now() WHERE id=$2 AND owner=$3`
	return r.execOne(ctx, query, sender, id, owner)
}

func (r *PostgresRepository) ResetSyncStatus(ctx context.Context, owner string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, models.SyncNotSynced, owner)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE files SET sync_status=$1, updated_at=now()
		WHERE owner=$2 AND id IN (%s)`, strings.Join(placeholders, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset sync status: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, owner string) (*models.FileStats, error) {
	stats := &models.FileStats{
		ByMediaType: make(map[models.MediaType]int64),
		BySender:    make(map[string]int64),
	}

	query := `SELECT count(*), coalesce(sum(size), 0),
		count(*) FILTER (WHERE sync_status = 'synced')
		FROM files WHERE owner=$1`
	if err := r.db.QueryRowContext(ctx, query, owner).
		Scan(&stats.TotalFiles, &stats.TotalSizeBytes, &stats.SyncedFiles); err != nil {
		return nil, fmt.Errorf("file stats: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT media_type, count(*) FROM files WHERE owner=$1 GROUP BY media_type`, owner)
	if err != nil {
		return nil, fmt.Errorf("media type stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mt models.MediaType
		var n int64
		if err := rows.Scan(&mt, &n); err != nil {
			return nil, err
		}
		stats.ByMediaType[mt] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	senderRows, err := r.db.QueryContext(ctx,
		`SELECT sender_id, count(*) FROM files WHERE owner=$1 GROUP BY sender_id`, owner)
	if err != nil {
		return nil, fmt.Errorf("sender stats: %w", err)
	}
	defer senderRows.Close()
	for senderRows.Next() {
		var sender string
		var n int64
		if err := senderRows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		stats.BySender[sender] = n
	}
	return stats, senderRows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id, owner string) error {
	return r.execOne(ctx, `DELETE FROM files WHERE id=$1 AND owner=$2`, id, owner)
}

// execOne runs a statement that must affect exactly one row, mapping
// zero affected rows to ErrNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := row.Scan(&rec.ID, &rec.Owner, &rec.Filename, &rec.LocalPath, &rec.OrganizedPath,
		&rec.FileHash, &rec.Size, &rec.MimeType, &rec.MediaType, &rec.SenderID,
		&rec.SyncStatus, &rec.UploadAttempts, &rec.LastError, &rec.RemotePath,
		&rec.RemoteURL, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// buildFilter turns a FileFilter into a WHERE clause with positional args.
func buildFilter(filter models.FileFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if filter.Owner != "" {
		add("owner", filter.Owner)
	}
	if filter.SenderID != "" {
		add("sender_id", filter.SenderID)
	}
	if filter.MediaType != "" {
		add("media_type", filter.MediaType)
	}
	if filter.SyncStatus != "" {
		add("sync_status", filter.SyncStatus)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
