package sessions

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

func sessionRow(payload string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "owner", "kind", "device_name", "status", "payload", "expires_at", "created_at", "updated_at",
	}).AddRow("s1", "owner1", "whatsapp", "Chrome", "qr_pending", []byte(payload), nil, now, now)
}

func TestCreate_FillsGeneratedFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+sessions\s*\(owner,\s*kind,.*RETURNING\s+id,\s*created_at,\s*updated_at$`).
		WithArgs("owner1", "whatsapp", "Chrome", "inactive", []byte(`{}`), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("s1", now, now))

	rec := &models.SessionRecord{
		Owner:      "owner1",
		Kind:       models.SessionWhatsApp,
		DeviceName: "Chrome",
		Status:     models.SessionInactive,
		Payload:    map[string]any{},
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != "s1" {
		t.Fatalf("ID = %q, want s1", rec.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID_DecodesPayload(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+id,\s*owner,.*FROM\s+sessions\s+WHERE\s+id=\$1$`).
		WithArgs("s1").
		WillReturnRows(sessionRow(`{"qr_code_data":"qr-1"}`))

	rec, err := repo.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Status != models.SessionQRPending {
		t.Fatalf("status = %q", rec.Status)
	}
	if rec.Payload[models.PayloadQRCode] != "qr-1" {
		t.Fatalf("payload = %+v", rec.Payload)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+id,\s*owner,.*FROM\s+sessions\s+WHERE\s+id=\$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindActive_None(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+owner=\$1\s+AND\s+status\s+IN\s+\(\$2,\s+\$3\)`).
		WithArgs("owner1", "qr_pending", "authenticated").
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.FindActive(context.Background(), "owner1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("want nil, got %+v", rec)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+sessions\s+SET\s+status=\$1,\s+updated_at=now\(\)\s+WHERE\s+id=\$2$`).
		WithArgs("closed", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.SessionClosed)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMergePayload_PreservesExistingKeys(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+id,\s*owner,.*FROM\s+sessions\s+WHERE\s+id=\$1$`).
		WithArgs("s1").
		WillReturnRows(sessionRow(`{"phone_hint":"447911"}`))

	mock.ExpectExec(`^UPDATE\s+sessions\s+SET\s+payload=\$1,\s+updated_at=now\(\)\s+WHERE\s+id=\$2$`).
		WithArgs(sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MergePayload(context.Background(), "s1", map[string]any{models.PayloadQRCode: "qr-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
