// Package uploader synchronizes file records to the remote object store:
// dedup by content hash, existence probing, verified uploads, collision
// renaming, and bounded retries.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
	"github.com/nileshh/whatsapp-media-sync/internal/filex"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
	"github.com/nileshh/whatsapp-media-sync/internal/objstore"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/files"
)

const (
	// maxRetries is the number of additional attempts after the first
	// failed upload.
	maxRetries = 2

	// retryBackoff spaces retry attempts.
	retryBackoff = 500 * time.Millisecond

	// errTruncateLen bounds the error message stored on a record.
	errTruncateLen = 255

	// timeoutFloor and timeoutPerChunk scale upload patience with size:
	// roughly 30s per 10MiB with a 30s floor, so small files are not
	// penalized by a timeout sized for large ones.
	timeoutFloor    = 30 * time.Second
	timeoutPerChunk = 30 * time.Second
	chunkSize       = 10 * 1024 * 1024
)

// Stats summarizes one sync pass.
type Stats struct {
	Total             int `json:"total"`
	Successful        int `json:"successful"`
	SkippedDuplicates int `json:"skipped_duplicates"`
	Errors            int `json:"errors"`
	Timeouts          int `json:"timeouts"`
}

// Coordinator drains unsynchronized records for one owner. Records are
// processed sequentially; dedup-check-then-upload is not atomic, and a
// racy double upload of identical content self-heals on the next verify
// pass.
type Coordinator struct {
	owner string
	repo  files.Repository
	store objstore.ObjectStore
	log   logging.Logger
	now   func() time.Time
}

func New(owner string, repo files.Repository, store objstore.ObjectStore, log logging.Logger) *Coordinator {
	return &Coordinator{
		owner: owner,
		repo:  repo,
		store: store,
		log:   log.With("component", "uploader", "owner", owner),
		now:   time.Now,
	}
}

// Sync uploads every record not already marked synced. Per-file errors
// never abort the batch.
func (c *Coordinator) Sync(ctx context.Context) (*Stats, error) {
	records, err := c.repo.ListUnsynced(ctx, c.owner)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}

	stats := &Stats{Total: len(records)}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if i > 0 && i%10 == 0 {
			c.log.Info(ctx, "sync progress", "processed", i, "total", len(records))
		}
		c.syncOne(ctx, rec, stats)
	}

	c.log.Info(ctx, "sync complete",
		"total", stats.Total,
		"successful", stats.Successful,
		"skipped_duplicates", stats.SkippedDuplicates,
		"errors", stats.Errors,
		"timeouts", stats.Timeouts)
	return stats, nil
}

func (c *Coordinator) syncOne(ctx context.Context, rec *models.FileRecord, stats *Stats) {
	// 1. Local existence. A missing source is terminal for this pass:
	// no retry, attempts counter untouched.
	localPath, err := c.localPath(rec)
	if err != nil {
		c.log.Warn(ctx, "local file missing", "file_id", rec.ID, "path", rec.LocalPath)
		c.markError(ctx, rec, fmt.Sprintf("file not found locally: %s", rec.LocalPath))
		stats.Errors++
		return
	}

	// 2. Content-hash dedup: an already-synced twin donates its remote
	// location and no bytes move.
	if rec.FileHash != "" {
		dup, err := c.repo.FindSyncedDuplicate(ctx, c.owner, rec.FileHash, rec.ID)
		if err != nil {
			c.log.Warn(ctx, "error checking duplicates", "file_id", rec.ID, "error", err)
		} else if dup != nil {
			c.log.Info(ctx, "duplicate content, reusing remote object",
				"file_id", rec.ID, "duplicate_of", dup.ID, "remote_path", dup.RemotePath)
			c.markSynced(ctx, rec, dup.RemotePath, dup.RemoteURL)
			stats.SkippedDuplicates++
			return
		}
	}

	// 3. Destination: identity-scoped when a sender is known, else
	// owner/timestamp-scoped.
	destPath := c.destinationPath(rec)

	// 4. Existence probe. Listing the parent prefix and matching the
	// exact name is more reliable than trusting a not-found error from a
	// direct head call.
	if c.remoteExists(ctx, destPath) {
		c.log.Info(ctx, "object already present", "file_id", rec.ID, "remote_path", destPath)
		c.markSynced(ctx, rec, destPath, c.store.PublicURL(destPath))
		stats.SkippedDuplicates++
		return
	}

	body, err := os.ReadFile(localPath)
	if err != nil {
		c.markError(ctx, rec, truncate(fmt.Sprintf("read local file: %v", err)))
		stats.Errors++
		return
	}

	finalPath, err := c.uploadWithRetry(ctx, rec, body, destPath)
	switch {
	case err == nil:
		c.markSynced(ctx, rec, finalPath, c.store.PublicURL(finalPath))
		stats.Successful++
	case errors.Is(err, context.DeadlineExceeded):
		c.markError(ctx, rec, "upload timeout")
		stats.Timeouts++
	default:
		c.markError(ctx, rec, truncate(err.Error()))
		stats.Errors++
	}
}

// uploadWithRetry runs the bounded attempt loop: the first attempt at
// destPath, later attempts at an alternate timestamped name to dodge a
// possible collision cause. Each failed attempt increments the record's
// attempts counter. Returns the path that finally stuck.
func (c *Coordinator) uploadWithRetry(ctx context.Context, rec *models.FileRecord, body []byte, destPath string) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout(rec.Size))
	defer cancel()

	attempt := 0
	currentPath := destPath

	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(retryBackoff))
	err := retry.Do(uploadCtx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			currentPath = alternatePath(destPath, c.now())
		}

		if err := c.uploadAndVerify(ctx, rec, body, currentPath); err != nil {
			c.log.Warn(ctx, "upload attempt failed",
				"file_id", rec.ID, "attempt", attempt, "remote_path", currentPath, "error", err)
			if repoErr := c.repo.IncrementAttempts(ctx, rec.ID, c.owner); repoErr != nil {
				c.log.Warn(ctx, "error incrementing attempts", "file_id", rec.ID, "error", repoErr)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if uploadCtx.Err() != nil {
			return "", context.DeadlineExceeded
		}
		return "", fmt.Errorf("%w: %v", common.ErrRetriesExhausted, err)
	}
	return currentPath, nil
}

// uploadAndVerify puts the object and re-probes for it. A reported
// success without verified presence is a failure, not a success.
func (c *Coordinator) uploadAndVerify(ctx context.Context, rec *models.FileRecord, body []byte, destPath string) error {
	if err := c.store.Put(ctx, destPath, body, rec.MimeType); err != nil {
		return err
	}
	if !c.remoteExists(ctx, destPath) {
		return fmt.Errorf("%w: %s", common.ErrUploadVerificationFailed, destPath)
	}
	return nil
}

// remoteExists lists the destination's parent prefix and checks for an
// exact name match.
func (c *Coordinator) remoteExists(ctx context.Context, destPath string) bool {
	prefix := path.Dir(destPath)
	if prefix == "." {
		prefix = ""
	}
	name := path.Base(destPath)

	objects, err := c.store.List(ctx, prefix)
	if err != nil {
		c.log.Warn(ctx, "error listing remote prefix", "prefix", prefix, "error", err)
		return false
	}
	for _, obj := range objects {
		if obj.Name == name {
			return true
		}
	}
	return false
}

// destinationPath derives the remote path: <sender>/<filename> with the
// sender sanitized, falling back to an owner/timestamp scope when no
// sender is known.
func (c *Coordinator) destinationPath(rec *models.FileRecord) string {
	sender := sanitizeIdentity(rec.SenderID)
	if sender != "" && sender != models.UnknownSender {
		return sender + "/" + rec.Filename
	}
	return fmt.Sprintf("%s/%s_%s", c.owner, c.now().Format("20060102150405"), rec.Filename)
}

// alternatePath appends a timestamp suffix before the extension:
// "123/a.jpg" -> "123/a_20230615120000.jpg".
func alternatePath(destPath string, now time.Time) string {
	dir := path.Dir(destPath)
	name, ext := filex.SplitExt(path.Base(destPath))
	alt := fmt.Sprintf("%s_%s%s", name, now.Format("20060102150405"), ext)
	if dir == "." {
		return alt
	}
	return dir + "/" + alt
}

func sanitizeIdentity(identity string) string {
	identity = strings.ReplaceAll(identity, "+", "")
	return strings.ReplaceAll(identity, " ", "")
}

// uploadTimeout scales patience with size: 30s per 10MiB, floor 30s.
func uploadTimeout(size int64) time.Duration {
	d := time.Duration(size/chunkSize) * timeoutPerChunk
	if d < timeoutFloor {
		return timeoutFloor
	}
	return d
}

// localPath returns a readable source path for the record, preferring the
// original location and falling back to the organized copy.
func (c *Coordinator) localPath(rec *models.FileRecord) (string, error) {
	if rec.LocalPath != "" {
		if _, err := os.Stat(rec.LocalPath); err == nil {
			return rec.LocalPath, nil
		}
	}
	if rec.OrganizedPath != "" {
		if _, err := os.Stat(rec.OrganizedPath); err == nil {
			return rec.OrganizedPath, nil
		}
	}
	return "", common.ErrLocalFileMissing
}

func (c *Coordinator) markSynced(ctx context.Context, rec *models.FileRecord, remotePath, remoteURL string) {
	if err := c.repo.MarkSynced(ctx, rec.ID, c.owner, remotePath, remoteURL); err != nil {
		c.log.Error(ctx, "error marking record synced", "file_id", rec.ID, "error", err)
	}
}

func (c *Coordinator) markError(ctx context.Context, rec *models.FileRecord, message string) {
	if err := c.repo.MarkSyncError(ctx, rec.ID, c.owner, message); err != nil {
		c.log.Error(ctx, "error marking record failed", "file_id", rec.ID, "error", err)
	}
}

func truncate(s string) string {
	if len(s) <= errTruncateLen {
		return s
	}
	// Back off to a rune boundary so the stored text stays valid UTF-8.
	cut := errTruncateLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
