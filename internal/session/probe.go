package session

import (
	"context"
	"strings"
	"time"

	"github.com/nileshh/whatsapp-media-sync/internal/browser"
)

// Markup varies between client versions, so authentication detection is
// multi-signal: an ordered list of probes, each with its own short
// timeout, evaluated until one decides. Absence of a QR element alone is
// necessary but not sufficient.
const (
	probeTimeout = 2 * time.Second
	qrSelector   = "canvas"
)

var (
	// landmarkSelectors appear only after login; any hit is the
	// strongest authentication signal.
	landmarkSelectors = []string{"[data-icon='chat']", "#pane-side"}

	// postLoginSelectors are weaker signals checked once no QR is
	// visible.
	postLoginSelectors = []string{"[data-icon='menu']"}
)

// selectorVisible probes for one selector inside its own timeout. Probe
// errors resolve to "not found"; a flaky probe must not stall or abort
// the others.
func selectorVisible(ctx context.Context, r browser.Renderer, selector string) bool {
	_, err := r.Find(ctx, selector, probeTimeout)
	return err == nil
}

// isAuthenticated applies the probe sequence against the rendered page.
func isAuthenticated(ctx context.Context, r browser.Renderer) bool {
	for _, sel := range landmarkSelectors {
		if selectorVisible(ctx, r, sel) {
			return true
		}
	}

	// A visible QR canvas means we are still on the login screen.
	if selectorVisible(ctx, r, qrSelector) {
		return false
	}

	for _, sel := range postLoginSelectors {
		if selectorVisible(ctx, r, sel) {
			return true
		}
	}

	// Weakest fallback: page title and content substrings.
	titleCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	title, err := r.Title(titleCtx)
	if err != nil || !strings.Contains(title, "WhatsApp") || strings.Contains(title, "Login") {
		return false
	}

	contentCtx, cancelContent := context.WithTimeout(ctx, probeTimeout)
	defer cancelContent()
	ready, err := r.Content(contentCtx, "WhatsApp is ready")
	return err == nil && ready
}

// qrExtractScript pulls the QR canvas content as a base64 PNG data URL.
const qrExtractScript = `return el.toDataURL('image/png');`
