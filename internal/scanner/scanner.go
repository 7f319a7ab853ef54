// Package scanner discovers WhatsApp media files on disk, attributes them
// to a sender, deduplicates them, and organizes them into an
// identity-keyed layout.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nileshh/whatsapp-media-sync/internal/attribute"
	"github.com/nileshh/whatsapp-media-sync/internal/filex"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

// SenderStats aggregates per-sender discovery counters.
type SenderStats struct {
	Count       int64                      `json:"count"`
	Size        int64                      `json:"size"`
	ByMediaType map[models.MediaType]int64 `json:"by_media_type"`
}

// Stats summarizes one scan pass.
type Stats struct {
	ByMediaType    map[models.MediaType]int64 `json:"by_media_type"`
	BySender       map[string]*SenderStats    `json:"by_sender"`
	TotalSize      int64                      `json:"total_size"`
	ErrorCount     int                        `json:"error_count"`
	DuplicateCount int                        `json:"duplicate_count"`
	RootsScanned   int                        `json:"roots_scanned"`
}

// Result carries the records discovered by a scan pass. RootsScanned==0
// marks a degraded pass (no readable roots), which is a result, not an
// error.
type Result struct {
	Records []*models.FileRecord `json:"records"`
	Stats   *Stats               `json:"stats"`
}

// Scanner walks media roots for one owner.
type Scanner struct {
	owner      string
	dataDir    string
	extraRoots []string
	log        logging.Logger
}

func New(owner, dataDir string, extraRoots []string, log logging.Logger) *Scanner {
	return &Scanner{
		owner:      owner,
		dataDir:    dataDir,
		extraRoots: extraRoots,
		log:        log.With("component", "scanner", "owner", owner),
	}
}

// Scan walks every readable media root and returns new records.
// knownHashes is the persisted dedup authority: content already recorded
// for this owner is skipped. Per-file errors increment the error counter;
// a failing root is logged and skipped.
func (s *Scanner) Scan(ctx context.Context, chats []models.ActiveChat, knownHashes map[string]struct{}) (*Result, error) {
	stats := &Stats{
		ByMediaType: make(map[models.MediaType]int64),
		BySender:    make(map[string]*SenderStats),
	}
	result := &Result{Stats: stats}

	// In-pass pre-filter: same filename and size seen during this walk.
	seen := make(map[string]struct{})

	for _, root := range mediaRoots(s.extraRoots) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !readableDir(root) {
			s.log.Debug(ctx, "skipping unreadable root", "root", root)
			continue
		}

		s.log.Info(ctx, "scanning root", "root", root)
		stats.RootsScanned++

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if walkErr != nil {
				stats.ErrorCount++
				return nil
			}
			if d.IsDir() || !isCandidate(d.Name()) {
				return nil
			}

			rec, err := s.processFile(ctx, path, d, chats, knownHashes, seen, stats)
			if err != nil {
				s.log.Warn(ctx, "error processing file", "path", path, "error", err)
				stats.ErrorCount++
				return nil
			}
			if rec != nil {
				result.Records = append(result.Records, rec)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			s.log.Error(ctx, "error walking root", "root", root, "error", err)
		}
	}

	if stats.RootsScanned == 0 {
		s.log.Warn(ctx, "no media roots were readable")
	}
	s.log.Info(ctx, "scan complete",
		"files", len(result.Records),
		"duplicates", stats.DuplicateCount,
		"errors", stats.ErrorCount,
		"total_size", stats.TotalSize)

	return result, nil
}

// processFile builds a FileRecord for one accepted path, or returns
// (nil, nil) for duplicates.
func (s *Scanner) processFile(ctx context.Context, path string, d fs.DirEntry,
	chats []models.ActiveChat, knownHashes, seen map[string]struct{}, stats *Stats) (*models.FileRecord, error) {

	info, err := d.Info()
	if err != nil {
		return nil, err
	}

	filename := d.Name()
	size := info.Size()

	passKey := fmt.Sprintf("%s|%d", filename, size)
	if _, dup := seen[passKey]; dup {
		stats.DuplicateCount++
		return nil, nil
	}
	seen[passKey] = struct{}{}

	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}
	if _, known := knownHashes[hash]; known {
		stats.DuplicateCount++
		return nil, nil
	}

	fileTime := effectiveTime(info)
	mediaType := classify(filename)
	sender := attribute.Attribute(path, fileTime, chats)

	rec := &models.FileRecord{
		Owner:      s.owner,
		Filename:   filename,
		LocalPath:  path,
		FileHash:   hash,
		Size:       size,
		MimeType:   guessMimeType(filename),
		MediaType:  mediaType,
		SenderID:   sender,
		SyncStatus: models.SyncNotSynced,
		CreatedAt:  fileTime,
	}

	// Copy into the organized layout; failure keeps the record with an
	// empty organized path and never aborts the scan.
	if organized, err := s.organize(rec); err != nil {
		s.log.Warn(ctx, "error organizing file", "path", path, "error", err)
	} else {
		rec.OrganizedPath = organized
	}

	s.tally(stats, rec)
	return rec, nil
}

// organize copies the file into <dataDir>/organized/<sender>/<media>/.
// Files without an attributed sender stay where they are.
func (s *Scanner) organize(rec *models.FileRecord) (string, error) {
	if rec.SenderID == "" || rec.SenderID == models.UnknownSender {
		return "", nil
	}

	dir, err := filex.EnsureDir(filepath.Join(s.dataDir, "organized", rec.SenderID, string(rec.MediaType)))
	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, rec.Filename)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := filex.CopyFile(rec.LocalPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (s *Scanner) tally(stats *Stats, rec *models.FileRecord) {
	stats.ByMediaType[rec.MediaType]++
	stats.TotalSize += rec.Size

	sender := stats.BySender[rec.SenderID]
	if sender == nil {
		sender = &SenderStats{ByMediaType: make(map[models.MediaType]int64)}
		stats.BySender[rec.SenderID] = sender
	}
	sender.Count++
	sender.Size += rec.Size
	sender.ByMediaType[rec.MediaType]++
}

// Inspect builds a record for a single caller-supplied file, attributing
// the sender when none is given. Used by the bulk-upload path.
func (s *Scanner) Inspect(path, sender string, chats []models.ActiveChat) (*models.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	fileTime := effectiveTime(info)
	if sender == "" {
		sender = attribute.Attribute(path, fileTime, chats)
	}

	rec := &models.FileRecord{
		Owner:      s.owner,
		Filename:   filename,
		LocalPath:  path,
		FileHash:   hash,
		Size:       info.Size(),
		MimeType:   guessMimeType(filename),
		MediaType:  classify(filename),
		SenderID:   sender,
		SyncStatus: models.SyncNotSynced,
		CreatedAt:  fileTime,
	}

	if organized, err := s.organize(rec); err == nil {
		rec.OrganizedPath = organized
	}
	return rec, nil
}
