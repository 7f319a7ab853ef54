// Package service orchestrates the pipeline: session machines, scans,
// and sync passes, scoped per owner.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/nileshh/whatsapp-media-sync/internal/attribute"
	"github.com/nileshh/whatsapp-media-sync/internal/browser"
	"github.com/nileshh/whatsapp-media-sync/internal/chats"
	"github.com/nileshh/whatsapp-media-sync/internal/config"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
	"github.com/nileshh/whatsapp-media-sync/internal/objstore"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/files"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/sessions"
	"github.com/nileshh/whatsapp-media-sync/internal/scanner"
	"github.com/nileshh/whatsapp-media-sync/internal/session"
	"github.com/nileshh/whatsapp-media-sync/internal/uploader"
)

// backfillPageSize pages through unattributed records during the sender
// reconciliation pass.
const backfillPageSize = 500

// ScanResult is what a scan run returns to the API: the walk stats plus
// how the metadata store changed.
type ScanResult struct {
	Stats             *scanner.Stats `json:"stats"`
	Inserted          int            `json:"inserted"`
	SendersBackfilled int            `json:"senders_backfilled"`
}

// Service orchestrates the pipeline for all owners: one session machine
// per owner, scans fed by that owner's live chat list, and sync passes
// against the shared object store.
type Service struct {
	cfg      *config.Config
	log      logging.Logger
	files    files.Repository
	sessions sessions.Repository
	store    objstore.ObjectStore
	factory  browser.Factory

	mu       sync.Mutex
	machines map[string]*session.Machine
}

func NewService(cfg *config.Config, filesRepo files.Repository, sessionsRepo sessions.Repository,
	store objstore.ObjectStore, factory browser.Factory, log logging.Logger) *Service {
	return &Service{
		cfg:      cfg,
		log:      log,
		files:    filesRepo,
		sessions: sessionsRepo,
		store:    store,
		factory:  factory,
		machines: make(map[string]*session.Machine),
	}
}

// machine returns the owner's session machine, creating it on first use.
func (s *Service) machine(owner string) *session.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[owner]
	if !ok {
		m = session.NewMachine(owner, s.factory, s.sessions,
			s.cfg.WebClientURL, s.cfg.QRWaitTimeout, s.log)
		s.machines[owner] = m
	}
	return m
}

func (s *Service) coordinator(owner string) *uploader.Coordinator {
	return uploader.New(owner, s.files, s.store, s.log)
}

func (s *Service) StartSession(ctx context.Context, owner string) (*session.StartResult, error) {
	return s.machine(owner).Start(ctx)
}

func (s *Service) PollSession(ctx context.Context, owner, sessionID string) (*session.PollResult, error) {
	return s.machine(owner).Poll(ctx, sessionID)
}

func (s *Service) CloseSession(ctx context.Context, owner, sessionID string) error {
	return s.machine(owner).Close(ctx, sessionID)
}

// Scan walks the owner's media roots and records new files. When the
// owner has a live authenticated session its chat list feeds sender
// attribution; without one the scan still runs and files land under the
// unknown sender, to be backfilled by a later scan.
func (s *Service) Scan(ctx context.Context, owner string) (*ScanResult, error) {
	activeChats := s.activeChats(ctx, owner)

	known, err := s.files.KnownHashes(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load known hashes: %w", err)
	}

	sc := scanner.New(owner, s.cfg.DataDir, s.cfg.ScanRoots, s.log)
	result, err := sc.Scan(ctx, activeChats, known)
	if err != nil {
		return nil, err
	}

	inserted := 0
	if len(result.Records) > 0 {
		inserted, err = s.files.Insert(ctx, result.Records)
		if err != nil {
			return nil, fmt.Errorf("persist scan results: %w", err)
		}
	}

	backfilled := 0
	if len(activeChats) > 0 {
		backfilled = s.backfillSenders(ctx, owner, activeChats)
	}

	s.log.Info(ctx, "scan finished", "owner", owner,
		"found", len(result.Records), "inserted", inserted, "backfilled", backfilled)
	return &ScanResult{Stats: result.Stats, Inserted: inserted, SendersBackfilled: backfilled}, nil
}

// activeChats reads the chat list from the owner's live renderer, or
// returns nil when no authenticated browser is around.
func (s *Service) activeChats(ctx context.Context, owner string) []models.ActiveChat {
	r := s.machine(owner).Renderer()
	if r == nil {
		return nil
	}
	return chats.NewAnalyzer(r, s.log).ActiveChats(ctx)
}

// backfillSenders re-attributes records that were stored under the
// unknown sender, now that a chat list is available.
func (s *Service) backfillSenders(ctx context.Context, owner string, activeChats []models.ActiveChat) int {
	filter := models.FileFilter{Owner: owner, SenderID: models.UnknownSender}

	updated := 0
	for offset := 0; ; {
		page, err := s.files.List(ctx, filter, backfillPageSize, offset)
		if err != nil {
			s.log.Warn(ctx, "error listing unattributed records", "owner", owner, "error", err)
			return updated
		}
		if len(page) == 0 {
			return updated
		}
		// Each re-attributed record leaves the unknown-sender set, so the
		// offset only advances past records that stayed behind.
		left := 0
		for _, rec := range page {
			name := rec.LocalPath
			if name == "" {
				name = rec.Filename
			}
			sender := attribute.Attribute(name, rec.CreatedAt, activeChats)
			if sender == models.UnknownSender || sender == rec.SenderID {
				left++
				continue
			}
			if err := s.files.SetSender(ctx, rec.ID, owner, sender); err != nil {
				s.log.Warn(ctx, "error backfilling sender", "file_id", rec.ID, "error", err)
				left++
				continue
			}
			updated++
		}
		if len(page) < backfillPageSize {
			return updated
		}
		offset += left
	}
}

// Sync runs an upload pass. When forceIDs is non-empty those records are
// reset to not_synced first.
func (s *Service) Sync(ctx context.Context, owner string, forceIDs []string) (*uploader.Stats, error) {
	c := s.coordinator(owner)
	if len(forceIDs) > 0 {
		return c.ForceResync(ctx, forceIDs)
	}
	return c.Sync(ctx)
}

func (s *Service) VerifyStorage(ctx context.Context, owner string) (*uploader.VerifyReport, error) {
	return s.coordinator(owner).VerifyStorage(ctx)
}

func (s *Service) ListFiles(ctx context.Context, filter models.FileFilter, limit, offset int) ([]*models.FileRecord, int64, error) {
	records, err := s.files.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.files.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Service) MissingFiles(ctx context.Context, owner string) ([]*models.FileRecord, error) {
	return s.files.ListUnsynced(ctx, owner)
}

func (s *Service) FileStats(ctx context.Context, owner string) (*models.FileStats, error) {
	return s.files.Stats(ctx, owner)
}

func (s *Service) DeleteFile(ctx context.Context, owner, fileID string) error {
	return s.coordinator(owner).DeleteFile(ctx, fileID)
}

// ProfileDir is where the browser keeps its persistent profile.
func ProfileDir(dataDir string) string {
	return filepath.Join(dataDir, "browser-profile")
}

// Shutdown tears down every live session machine.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, m := range s.machines {
		s.log.Info(ctx, "shutting down session", "owner", owner)
		m.Shutdown(ctx)
	}
}
