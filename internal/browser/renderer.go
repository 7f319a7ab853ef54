// Package browser defines the page-rendering capability used by the
// session state machine, with an implementation driving a headless
// Chrome instance.
package browser

import (
	"context"
	"time"
)

// Element is an opaque handle to a located DOM node, usable as the target
// of a script execution.
type Element interface {
	// Selector returns the selector this element was found by.
	Selector() string
}

// Renderer is the browser capability. Selector strings are configuration
// data; probe logic tries ordered fallback lists of them, so Find must
// fail fast with the given timeout rather than blocking indefinitely.
type Renderer interface {
	Open(ctx context.Context, url string) error
	// Find waits up to timeout for a node matching selector.
	Find(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// Execute runs a script against the element and returns its string result.
	Execute(ctx context.Context, script string, el Element) (string, error)
	// Title returns the current page title.
	Title(ctx context.Context) (string, error)
	// Content reports whether the page body contains the given substring.
	Content(ctx context.Context, substring string) (bool, error)
	Screenshot(ctx context.Context, path string) error
	Refresh(ctx context.Context) error
	Quit(ctx context.Context) error
}

// Factory acquires a fresh Renderer. Acquisition failure is fatal to the
// operation that requested it.
type Factory interface {
	New(ctx context.Context) (Renderer, error)
}
