package cdp

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/pkg/browser"
)

var (
	_ browser.Context        = (*captureContext)(nil)
	_ browser.CookieSetter   = (*captureContext)(nil)
	_ browser.ScriptInjector = (*captureContext)(nil)
)

// contextInitTimeout bounds tab creation and network-capture enablement.
const contextInitTimeout = 30 * time.Second

// captureContext is one isolated tab with network recording attached.
type captureContext struct {
	id        string
	logger    *zap.Logger
	tabCtx    context.Context
	tabCancel context.CancelFunc
	harvester *harvester

	mu     sync.Mutex
	closed bool
}

func newCaptureContext(allocCtx context.Context, opts browser.ContextOptions, logger *zap.Logger) (*captureContext, error) {
	id := uuid.New().String()
	l := logger.Named("capture").With(zap.String("context_id", id[:8]))

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	h, err := newHarvester(opts.RecordPath, opts.RecordMode, l)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("open capture artifact: %w", err)
	}

	// The listener must be attached before anything loads so the very first
	// request, headers included, lands in the artifact.
	h.listen(tabCtx)

	// Running network.Enable also forces the tab into existence. Bounded so
	// a wedged browser fails the launch instead of blocking it forever.
	initCtx, cancelInit := context.WithTimeout(tabCtx, contextInitTimeout)
	defer cancelInit()
	if err := chromedp.Run(initCtx, network.Enable()); err != nil {
		h.abort()
		tabCancel()
		return nil, fmt.Errorf("enable network capture: %w", err)
	}

	l.Debug("Browsing context created", zap.String("artifact", opts.RecordPath))
	return &captureContext{
		id:        id,
		logger:    l,
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		harvester: h,
	}, nil
}

// SetDefaultHeaders applies extra HTTP headers to every request this context
// makes from now on.
func (c *captureContext) SetDefaultHeaders(ctx context.Context, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := make(network.Headers, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	if err := chromedp.Run(c.tabCtx, network.SetExtraHTTPHeaders(h)); err != nil {
		return fmt.Errorf("set default headers: %w", err)
	}
	c.harvester.setDefaultHeaders(headers)
	return nil
}

// SetCookie injects a host-scoped session cookie on every new document.
func (c *captureContext) SetCookie(ctx context.Context, name, value string) error {
	script := fmt.Sprintf("document.cookie = %s;", strconv.Quote(name+"="+value+"; path=/"))
	return c.InjectOnNewDocument(ctx, script)
}

// InjectOnNewDocument runs a script before any page script on every new
// document in this context.
func (c *captureContext) InjectOnNewDocument(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	action := chromedp.ActionFunc(func(runCtx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(runCtx)
		return err
	})
	if err := chromedp.Run(c.tabCtx, action); err != nil {
		return fmt.Errorf("inject script: %w", err)
	}
	return nil
}

// NewPage returns the page handle for this context. A chromedp context is
// one tab, so the context and its page share the underlying target.
func (c *captureContext) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("browsing context is closed")
	}
	return &pageHandle{owner: c}, nil
}

// Close stops recording, compacts the artifact into its final form, and
// tears the tab down. Safe to call repeatedly.
func (c *captureContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var err error
	// Finalize the artifact first; the tab teardown cannot add traffic after
	// the listener context is cancelled.
	err = multierr.Append(err, c.harvester.stop())

	c.tabCancel()
	select {
	case <-c.tabCtx.Done():
	case <-time.After(10 * time.Second):
		err = multierr.Append(err, fmt.Errorf("deadline exceeded waiting for tab to close"))
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}

	if err != nil {
		c.logger.Warn("Browsing context closed with errors", zap.Error(err))
		return err
	}
	c.logger.Debug("Browsing context closed")
	return nil
}

// pageHandle implements browser.Page on the owning context's tab.
type pageHandle struct {
	owner *captureContext
}

// Goto navigates and waits per the policy. The timeout is applied to the
// tab's own context so chromedp internals survive the deadline.
func (p *pageHandle) Goto(ctx context.Context, url string, wait browser.WaitPolicy, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(p.owner.tabCtx, timeout)
	defer cancel()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	switch wait {
	case browser.WaitDOMReady:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	case browser.WaitNetworkIdle:
		actions = append(actions, chromedp.ActionFunc(func(runCtx context.Context) error {
			return p.owner.harvester.waitIdle(runCtx, 500*time.Millisecond)
		}))
	default:
		// chromedp.Navigate already waits for the load lifecycle.
	}

	return chromedp.Run(navCtx, actions...)
}
