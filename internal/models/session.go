package models

import "time"

// SessionKind names the remote client a session connects to. Only the
// WhatsApp web client is supported.
type SessionKind string

const SessionWhatsApp SessionKind = "whatsapp"

// SessionStatus is the session state machine's persisted state.
// inactive -> qr_pending -> authenticated; error is reachable from any
// state; closed is terminal.
type SessionStatus string

const (
	SessionInactive      SessionStatus = "inactive"
	SessionQRPending     SessionStatus = "qr_pending"
	SessionAuthenticated SessionStatus = "authenticated"
	SessionErrored       SessionStatus = "error"
	SessionClosed        SessionStatus = "closed"
)

// PayloadQRCode keys the current QR image in SessionRecord.Payload.
const PayloadQRCode = "qr_code_data"

// SessionRecord is the persisted state of one browser session.
// The browser handle itself is owned exclusively by the in-memory
// machine that created it and is never persisted.
type SessionRecord struct {
	ID         string
	Owner      string
	Kind       SessionKind
	DeviceName string
	Status     SessionStatus

	// Payload holds transient session data such as the last QR image.
	Payload map[string]any

	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
