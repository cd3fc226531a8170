// Package browser defines the capture session lifecycle and the collaborator
// interfaces it drives. The concrete engine lives in the cdp subpackage;
// tests substitute fakes.
package browser

import (
	"context"
	"fmt"
	"time"
)

// State is the lifecycle position of one capture session.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateNavigating
	StateFinalizing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// WaitPolicy selects when a navigation is considered complete.
type WaitPolicy string

const (
	WaitLoad        WaitPolicy = "load"
	WaitDOMReady    WaitPolicy = "domcontentloaded"
	WaitNetworkIdle WaitPolicy = "networkidle"
)

// DefaultNavigationTimeout bounds a single navigation.
const DefaultNavigationTimeout = 30 * time.Second

// AuthMode selects the single token-injection strategy for a session.
type AuthMode string

const (
	AuthHeader  AuthMode = "header"
	AuthCookie  AuthMode = "cookie"
	AuthStorage AuthMode = "storage"
)

// Engine is the browser-automation collaborator. One Engine owns one browser
// process; a session owns its Engine exclusively.
type Engine interface {
	// NewContext opens an isolated browsing context that records all network
	// traffic to opts.RecordPath from the moment the context exists.
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	// Close terminates the browser process. Must tolerate repeat calls.
	Close(ctx context.Context) error
}

// ContextOptions configures a recording browsing context.
type ContextOptions struct {
	// RecordPath is the artifact file traffic is recorded to.
	RecordPath string
	// RecordMode is an engine-specific recording mode hint ("minimal", "full").
	RecordMode string
}

// Context is an isolated browsing context within an Engine.
type Context interface {
	// SetDefaultHeaders applies headers to every subsequent request made by
	// any page in this context. Applied once at session launch.
	SetDefaultHeaders(ctx context.Context, headers map[string]string) error
	// NewPage opens a page (tab) in this context.
	NewPage(ctx context.Context) (Page, error)
	// Close tears the context down and finalizes the recorded artifact.
	// Must tolerate repeat calls.
	Close(ctx context.Context) error
}

// Page is a single page within a Context.
type Page interface {
	// Goto drives the page to url and waits per the policy, bounded by timeout.
	Goto(ctx context.Context, url string, wait WaitPolicy, timeout time.Duration) error
}

// CookieSetter is an optional Context capability used by cookie auth.
type CookieSetter interface {
	SetCookie(ctx context.Context, name, value string) error
}

// ScriptInjector is an optional Context capability used by storage auth.
type ScriptInjector interface {
	InjectOnNewDocument(ctx context.Context, script string) error
}
