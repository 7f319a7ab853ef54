package uploader

import (
	"context"
	"fmt"

	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// MissingObject is a synced record whose remote object could not be
// found during verification.
type MissingObject struct {
	FileID     string `json:"file_id"`
	Filename   string `json:"filename"`
	RemotePath string `json:"remote_path"`
}

// VerifyReport summarizes a storage verification pass.
type VerifyReport struct {
	Checked int             `json:"checked"`
	Missing []MissingObject `json:"missing"`
}

// VerifyStorage re-probes the remote object for every synced record and
// reports the ones that have gone missing. It never mutates records;
// ForceResync is the explicit path back to not_synced.
func (c *Coordinator) VerifyStorage(ctx context.Context) (*VerifyReport, error) {
	records, err := c.repo.ListSynced(ctx, c.owner)
	if err != nil {
		return nil, fmt.Errorf("list synced: %w", err)
	}

	report := &VerifyReport{Checked: len(records), Missing: []MissingObject{}}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if rec.RemotePath == "" || !c.remoteExists(ctx, rec.RemotePath) {
			report.Missing = append(report.Missing, MissingObject{
				FileID:     rec.ID,
				Filename:   rec.Filename,
				RemotePath: rec.RemotePath,
			})
		}
	}

	c.log.Info(ctx, "storage verification complete",
		"checked", report.Checked, "missing", len(report.Missing))
	return report, nil
}

// ForceResync resets the given records to not_synced and runs a sync
// pass. This is the only sanctioned transition out of synced.
func (c *Coordinator) ForceResync(ctx context.Context, fileIDs []string) (*Stats, error) {
	if len(fileIDs) > 0 {
		if err := c.repo.ResetSyncStatus(ctx, c.owner, fileIDs); err != nil {
			return nil, fmt.Errorf("reset sync status: %w", err)
		}
	}
	return c.Sync(ctx)
}

// DeleteFile removes the record and, when it was synced, best-effort
// deletes the remote object. A failed remote delete never blocks the
// record delete.
func (c *Coordinator) DeleteFile(ctx context.Context, fileID string) error {
	rec, err := c.repo.GetByID(ctx, fileID, c.owner)
	if err != nil {
		return err
	}

	if rec.SyncStatus == models.SyncSynced && rec.RemotePath != "" {
		if err := c.store.Delete(ctx, rec.RemotePath); err != nil {
			c.log.Warn(ctx, "error deleting remote object",
				"file_id", fileID, "remote_path", rec.RemotePath, "error", err)
		}
	}

	return c.repo.Delete(ctx, fileID, c.owner)
}
