package files

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func fileRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "owner", "filename", "local_path", "organized_path", "file_hash", "size",
		"mime_type", "media_type", "sender_id", "sync_status", "upload_attempts", "last_error",
		"remote_path", "remote_url", "created_at", "updated_at",
	}).AddRow(
		"f1", "owner1", "a.jpg", "/tmp/a.jpg", "", "abc123", int64(11),
		"image/jpeg", "image", "447911123456", "not_synced", 0, "",
		"", "", now, now,
	)
}

func TestInsert_Chunked(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+files\s*\(owner,\s*filename,.*\)\s*VALUES\s*\(\$1,.*\)`

	// 60 records span two batches of 50 and 10.
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 50))
	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 10))

	records := make([]*models.FileRecord, 60)
	for i := range records {
		records[i] = &models.FileRecord{Owner: "owner1", Filename: "a.jpg", FileHash: "h"}
	}

	n, err := repo.Insert(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 60 {
		t.Fatalf("inserted = %d, want 60", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*owner,.*FROM\s+files\s+WHERE\s+id=\$1\s+AND\s+owner=\$2$`).
		WithArgs("f1", "owner1").
		WillReturnRows(fileRow())

	rec, err := repo.GetByID(context.Background(), "f1", "owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "f1" || rec.SenderID != "447911123456" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*owner,.*FROM\s+files\s+WHERE\s+id=\$1\s+AND\s+owner=\$2$`).
		WithArgs("missing", "owner1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing", "owner1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestList_AppliesFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,.*FROM\s+files\s+WHERE\s+owner=\$1\s+AND\s+sync_status=\$2\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4$`
	mock.ExpectQuery(q).
		WithArgs("owner1", "not_synced", 10, 0).
		WillReturnRows(fileRow())

	filter := models.FileFilter{Owner: "owner1", SyncStatus: models.SyncNotSynced}
	records, err := repo.List(context.Background(), filter, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1", len(records))
	}
}

func TestFindSyncedDuplicate_None(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*file_hash=\$2\s+AND\s+sync_status=\$3\s+AND\s+id\s+<>\s+\$4\s+LIMIT\s+1$`).
		WithArgs("owner1", "h", "synced", "f1").
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.FindSyncedDuplicate(context.Background(), "owner1", "h", "f1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("want nil record, got %+v", rec)
	}
}

func TestKnownHashes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+DISTINCT\s+file_hash\s+FROM\s+files\s+WHERE\s+owner=\$1$`).
		WithArgs("owner1").
		WillReturnRows(sqlmock.NewRows([]string{"file_hash"}).AddRow("h1").AddRow("h2"))

	hashes, err := repo.KnownHashes(context.Background(), "owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("len = %d, want 2", len(hashes))
	}
	if _, ok := hashes["h1"]; !ok {
		t.Fatalf("missing h1")
	}
}

func TestMarkSynced_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+files\s+SET\s+sync_status=\$1,\s+remote_path=\$2,\s+remote_url=\$3,.*WHERE\s+id=\$4\s+AND\s+owner=\$5$`).
		WithArgs("synced", "447911123456/a.jpg", "https://x/a.jpg", "f1", "owner1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSynced(context.Background(), "f1", "owner1", "447911123456/a.jpg", "https://x/a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMarkSyncError_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+files\s+SET\s+sync_status=\$1,\s+last_error=\$2,.*WHERE\s+id=\$3\s+AND\s+owner=\$4$`).
		WithArgs("sync_error", "boom", "missing", "owner1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSyncError(context.Background(), "missing", "owner1", "boom")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestIncrementAttempts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+files\s+SET\s+upload_attempts\s+=\s+upload_attempts\s+\+\s+1,.*WHERE\s+id=\$1\s+AND\s+owner=\$2$`).
		WithArgs("f1", "owner1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.IncrementAttempts(context.Background(), "f1", "owner1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResetSyncStatus_Placeholders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+files\s+SET\s+sync_status=\$1,.*WHERE\s+owner=\$2\s+AND\s+id\s+IN\s+\(\$3,\s+\$4\)$`).
		WithArgs("not_synced", "owner1", "f1", "f2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.ResetSyncStatus(context.Background(), "owner1", []string{"f1", "f2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+files\s+WHERE\s+id=\$1\s+AND\s+owner=\$2$`).
		WithArgs("missing", "owner1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing", "owner1")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
