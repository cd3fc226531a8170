// Package cdp implements the browser collaborator interfaces on top of
// chromedp and the Chrome DevTools Protocol.
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/pkg/browser"
)

var _ browser.Engine = (*Engine)(nil)

// Options configures the browser process an Engine manages.
type Options struct {
	Headless        bool
	IgnoreTLSErrors bool
	UserAgent       string
	// ExecPath overrides the chromium binary location. Empty means the
	// allocator's default lookup.
	ExecPath string
	// ExtraArgs are raw chromium flags, "name" or "name=value".
	ExtraArgs []string
	// StartupTimeout bounds the responsiveness probe at engine creation.
	StartupTimeout time.Duration
}

// Engine owns one headless browser process. The browser is launched once at
// engine creation; every browsing context is a tab inside that same process,
// and the engine lives until Close.
type Engine struct {
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewEngine launches the browser process and verifies it responds. The
// allocator is rooted in a background context so the engine outlives the
// caller's launch deadline; Close is the only way to terminate it.
func NewEngine(ctx context.Context, opts Options, logger *zap.Logger) (*Engine, error) {
	e := &Engine{logger: logger.Named("cdp_engine")}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	e.allocCancel = allocCancel
	e.browserCtx = browserCtx
	e.browserCancel = browserCancel

	startupTimeout := opts.StartupTimeout
	if startupTimeout <= 0 {
		startupTimeout = 30 * time.Second
	}

	// Probe the browser's initial tab to confirm the process starts. This is
	// the launch itself: the same browser serves every capture context as an
	// additional tab, so no second process is ever spawned.
	probeCtx, cancelProbe := context.WithTimeout(browserCtx, startupTimeout)
	defer cancelProbe()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		e.teardown()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	// The probe also respects the caller's deadline.
	if err := ctx.Err(); err != nil {
		e.teardown()
		return nil, err
	}

	e.logger.Info("Browser engine launched", zap.Bool("headless", opts.Headless))
	return e, nil
}

// NewContext opens an isolated browsing context (tab) in the already running
// browser that records all network traffic to opts.RecordPath from the
// moment it exists.
func (e *Engine) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newCaptureContext(e.browserCtx, opts, e.logger)
}

// Close terminates the browser process. Safe to call repeatedly.
func (e *Engine) Close(ctx context.Context) error {
	if e.allocCancel == nil {
		return nil
	}
	e.logger.Debug("Shutting down browser process")
	e.teardown()

	select {
	case <-e.browserCtx.Done():
	case <-ctx.Done():
		return fmt.Errorf("deadline exceeded waiting for browser shutdown: %w", ctx.Err())
	}
	return nil
}

func (e *Engine) teardown() {
	e.browserCancel()
	e.allocCancel()
	e.allocCancel = nil
}

// buildAllocatorOptions assembles chromium flags for a capture-friendly
// browser instance.
func buildAllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	out = append(out,
		// Later flags win, so this overrides the default that advertises
		// automation to the page.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("ignore-certificate-errors", opts.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", opts.Headless),
	)
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}

	for _, arg := range opts.ExtraArgs {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			out = append(out, chromedp.Flag(name, parts[1]))
		} else {
			out = append(out, chromedp.Flag(name, true))
		}
	}

	// Containerized Linux needs the sandbox relaxed.
	if runtime.GOOS == "linux" {
		out = append(out,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return out
}
