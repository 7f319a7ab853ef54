// Package session drives a WhatsApp web session through QR presentation
// and authentication detection, persisting every transition.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nileshh/whatsapp-media-sync/internal/browser"
	"github.com/nileshh/whatsapp-media-sync/internal/common"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/sessions"
)

// pollQRWait bounds the search for a rotated QR during Poll.
const pollQRWait = 5 * time.Second

// StartResult is returned by Start. Either AlreadyAuthenticated is set,
// or a QR payload is available for the caller to present.
type StartResult struct {
	SessionID            string `json:"session_id"`
	AlreadyAuthenticated bool   `json:"already_authenticated"`
	QRAvailable          bool   `json:"qr_available"`
	QRData               string `json:"qr_data,omitempty"`
}

// PollResult reports the session's authentication state. When not yet
// authenticated, the freshest known QR payload rides along for UI
// continuity.
type PollResult struct {
	Authenticated bool   `json:"authenticated"`
	QRAvailable   bool   `json:"qr_available"`
	QRData        string `json:"qr_data,omitempty"`
}

// Machine owns at most one browser handle for one owner. A second Start
// while a handle is live closes the old handle first; handles are never
// leaked.
type Machine struct {
	owner        string
	deviceName   string
	webClientURL string
	qrWait       time.Duration

	factory browser.Factory
	repo    sessions.Repository
	log     logging.Logger

	mu        sync.Mutex
	renderer  browser.Renderer
	sessionID string
}

func NewMachine(owner string, factory browser.Factory, repo sessions.Repository,
	webClientURL string, qrWait time.Duration, log logging.Logger) *Machine {
	return &Machine{
		owner:        owner,
		deviceName:   "Chrome",
		webClientURL: webClientURL,
		qrWait:       qrWait,
		factory:      factory,
		repo:         repo,
		log:          log.With("component", "session", "owner", owner),
	}
}

// Start acquires a renderer, opens the web client, and either detects an
// existing authentication or extracts a QR code for the caller to scan.
// Renderer acquisition failure is fatal and creates no session record.
func (m *Machine) Start(ctx context.Context) (*StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Close a prior handle instead of leaking it.
	if m.renderer != nil {
		m.log.Info(ctx, "closing previous browser handle")
		_ = m.renderer.Quit(ctx)
		m.renderer = nil
		m.sessionID = ""
	}

	// A leftover active record from a previous process has no handle
	// behind it anymore; retire it before starting fresh.
	if stale, err := m.repo.FindActive(ctx, m.owner); err != nil {
		m.log.Warn(ctx, "error checking for active session", "error", err)
	} else if stale != nil {
		m.setStatus(ctx, stale.ID, models.SessionClosed)
	}

	r, err := m.factory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire renderer: %w", err)
	}

	if err := r.Open(ctx, m.webClientURL); err != nil {
		_ = r.Quit(ctx)
		return nil, fmt.Errorf("%w: open client: %v", common.ErrCapabilityUnavailable, err)
	}

	record := &models.SessionRecord{
		Owner:      m.owner,
		Kind:       models.SessionWhatsApp,
		DeviceName: m.deviceName,
		Status:     models.SessionInactive,
		Payload:    map[string]any{},
	}
	if err := m.repo.Create(ctx, record); err != nil {
		_ = r.Quit(ctx)
		return nil, fmt.Errorf("create session record: %w", err)
	}

	m.renderer = r
	m.sessionID = record.ID

	if isAuthenticated(ctx, r) {
		m.log.Info(ctx, "already authenticated", "session_id", record.ID)
		m.setStatus(ctx, record.ID, models.SessionAuthenticated)
		return &StartResult{SessionID: record.ID, AlreadyAuthenticated: true}, nil
	}

	qr, found := m.extractQR(ctx, r, m.qrWait)
	if !found {
		// Authentication may have completed during the QR wait.
		if isAuthenticated(ctx, r) {
			m.log.Info(ctx, "authentication detected after qr timeout", "session_id", record.ID)
			m.setStatus(ctx, record.ID, models.SessionAuthenticated)
			return &StartResult{SessionID: record.ID, AlreadyAuthenticated: true}, nil
		}
		m.setStatus(ctx, record.ID, models.SessionErrored)
		return nil, fmt.Errorf("%w: qr code not found", common.ErrProbeTimeout)
	}

	m.storeQR(ctx, record.ID, qr)
	m.setStatus(ctx, record.ID, models.SessionQRPending)

	return &StartResult{SessionID: record.ID, QRAvailable: true, QRData: qr}, nil
}

// Poll re-applies the authentication probe. Probe failures never escape;
// they resolve to a not-authenticated result, possibly with a refreshed
// QR (the client rotates QR codes periodically).
func (m *Machine) Poll(ctx context.Context, sessionID string) (*PollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.sessionID != sessionID {
		return nil, fmt.Errorf("%w: no live browser handle for session %s",
			common.ErrCapabilityUnavailable, sessionID)
	}

	record, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if isAuthenticated(ctx, m.renderer) {
		m.setStatus(ctx, sessionID, models.SessionAuthenticated)
		result := &PollResult{Authenticated: true}
		if qr, ok := record.Payload[models.PayloadQRCode].(string); ok && qr != "" {
			result.QRAvailable = true
			result.QRData = qr
		}
		return result, nil
	}

	if qr, found := m.extractQR(ctx, m.renderer, pollQRWait); found {
		m.storeQR(ctx, sessionID, qr)
		if record.Status != models.SessionQRPending {
			m.setStatus(ctx, sessionID, models.SessionQRPending)
		}
		return &PollResult{QRAvailable: true, QRData: qr}, nil
	}

	return &PollResult{}, nil
}

// Close releases the browser handle (idempotent) and marks the session
// closed.
func (m *Machine) Close(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer != nil {
		_ = m.renderer.Quit(ctx)
		m.renderer = nil
		m.sessionID = ""
	}

	record, err := m.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if record.Status == models.SessionClosed {
		return nil
	}
	return m.repo.UpdateStatus(ctx, sessionID, models.SessionClosed)
}

// Shutdown releases the handle without a target session, for process
// teardown.
func (m *Machine) Shutdown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer != nil {
		_ = m.renderer.Quit(ctx)
		m.renderer = nil
	}
	if m.sessionID != "" {
		if err := m.repo.UpdateStatus(ctx, m.sessionID, models.SessionClosed); err != nil {
			m.log.Warn(ctx, "error closing session on shutdown", "session_id", m.sessionID, "error", err)
		}
		m.sessionID = ""
	}
}

// Renderer exposes the live handle for collaborators (chat extraction
// during a scan). Nil when no session is active.
func (m *Machine) Renderer() browser.Renderer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renderer
}

// extractQR locates the QR canvas within wait and pulls its image
// payload. Any failure resolves to not-found.
func (m *Machine) extractQR(ctx context.Context, r browser.Renderer, wait time.Duration) (string, bool) {
	el, err := r.Find(ctx, qrSelector, wait)
	if err != nil {
		return "", false
	}

	qr, err := r.Execute(ctx, qrExtractScript, el)
	if err != nil || qr == "" {
		m.log.Warn(ctx, "error extracting qr payload", "error", err)
		return "", false
	}
	return qr, true
}

func (m *Machine) storeQR(ctx context.Context, sessionID, qr string) {
	err := m.repo.MergePayload(ctx, sessionID, map[string]any{models.PayloadQRCode: qr})
	if err != nil {
		m.log.Warn(ctx, "error storing qr payload", "session_id", sessionID, "error", err)
	}
}

// setStatus persists a transition; persistence failures are logged, not
// raised, so a flaky store cannot wedge the in-memory machine.
func (m *Machine) setStatus(ctx context.Context, sessionID string, status models.SessionStatus) {
	if err := m.repo.UpdateStatus(ctx, sessionID, status); err != nil {
		m.log.Error(ctx, "error persisting session status",
			"session_id", sessionID, "status", status, "error", err)
	}
}
