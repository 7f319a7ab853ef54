package models

import "time"

// ActiveChat is a conversation observed in the live session's chat list.
// It is ephemeral: produced by one inspection of the page and consumed by
// the attributor during a single scan pass, never persisted.
type ActiveChat struct {
	// ID is the counterpart identity, a bare phone number when one could
	// be extracted from the chat title, otherwise the title itself.
	ID           string
	Title        string
	LastActivity time.Time
}
