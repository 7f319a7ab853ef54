package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
)

// chromeElement records the selector a node was located by; chromedp
// re-resolves the selector when a script targets it.
type chromeElement struct {
	selector string
}

func (e *chromeElement) Selector() string { return e.selector }

// Chrome implements Renderer over a headless Chrome driven by chromedp.
// One Chrome owns one browser context; Quit releases it.
type Chrome struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// ChromeFactory launches headless Chrome instances sharing a user data
// directory, so an authenticated WhatsApp session survives restarts.
type ChromeFactory struct {
	// UserDataDir is the Chrome profile directory.
	UserDataDir string
}

func (f *ChromeFactory) New(ctx context.Context) (Renderer, error) {
	if f.UserDataDir != "" {
		if err := os.MkdirAll(f.UserDataDir, 0o770); err != nil {
			return nil, fmt.Errorf("%w: profile dir: %v", common.ErrCapabilityUnavailable, err)
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(f.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Starting the browser can fail (no Chrome binary, no display); probe
	// with a no-op navigation so acquisition errors surface here, not on
	// the first real operation.
	startCtx, startCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer startCancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("%w: launch chrome: %v", common.ErrCapabilityUnavailable, err)
	}

	return &Chrome{allocCancel: allocCancel, ctx: browserCtx, cancel: cancel}, nil
}

func (c *Chrome) Open(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Find(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	findCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.run(findCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		if findCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrProbeTimeout, selector)
		}
		return nil, fmt.Errorf("find %s: %w", selector, err)
	}
	return &chromeElement{selector: selector}, nil
}

// Execute evaluates script with the element bound as `el`. The script's
// result is coerced to a string, which covers the QR data-URL extraction
// this service needs.
func (c *Chrome) Execute(ctx context.Context, script string, el Element) (string, error) {
	expr := script
	if el != nil {
		expr = fmt.Sprintf("(function(el){ %s })(document.querySelector(%q))", script, el.Selector())
	}

	var result string
	if err := c.run(ctx, chromedp.Evaluate(expr, &result)); err != nil {
		return "", fmt.Errorf("execute script: %w", err)
	}
	return result, nil
}

func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("page title: %w", err)
	}
	return title, nil
}

func (c *Chrome) Content(ctx context.Context, substring string) (bool, error) {
	var body string
	err := c.run(ctx, chromedp.Evaluate("document.body ? document.body.innerText : ''", &body))
	if err != nil {
		return false, fmt.Errorf("page content: %w", err)
	}
	return strings.Contains(body, substring), nil
}

func (c *Chrome) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o640)
}

func (c *Chrome) Refresh(ctx context.Context) error {
	if err := c.run(ctx, chromedp.Reload()); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// Quit releases the browser. Safe to call more than once.
func (c *Chrome) Quit(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	return nil
}

// run executes actions on the browser context while honoring the caller's
// deadline and cancellation. The derived context keeps the chromedp
// target attached to c.ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.ctx == nil {
		return common.ErrCapabilityUnavailable
	}

	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
