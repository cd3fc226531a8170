package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Session drives one browser capture: launch, navigate zero or more times,
// finalize the recorded artifact, close. A Session is not safe for use from
// multiple concurrent callers; run independent Sessions for parallel
// captures. Close is the one exception: it may race an in-flight operation
// to tear resources down best-effort.
type Session struct {
	id         string
	logger     *zap.Logger
	engine     Engine
	strategy   AuthStrategy
	token      string
	navTimeout time.Duration
	tempDir    string
	recordMode string

	mu           sync.Mutex
	state        State
	bctx         Context
	page         Page
	artifactPath string
}

// Options configures a Session.
type Options struct {
	// Engine is the browser collaborator. The session takes ownership and
	// releases it on Close.
	Engine Engine
	// Token is the bearer token injected at context creation.
	Token string
	// AuthMode selects the injection strategy; empty means header.
	AuthMode AuthMode
	// NavigationTimeout bounds each navigation; zero means the default (30s).
	NavigationTimeout time.Duration
	// TempDir is where the in-flight artifact lives; empty means os.TempDir.
	TempDir string
	// RecordMode is passed through to the engine ("minimal" by default).
	RecordMode string
	// Logger must not be nil.
	Logger *zap.Logger
}

// NewSession builds a Session in the created state. Nothing touches the
// browser until Launch.
func NewSession(opts Options) (*Session, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("session requires a browser engine")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("session requires a bearer token")
	}
	strategy, err := NewAuthStrategy(opts.AuthMode)
	if err != nil {
		return nil, err
	}
	navTimeout := opts.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = DefaultNavigationTimeout
	}
	recordMode := opts.RecordMode
	if recordMode == "" {
		recordMode = "minimal"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New().String()
	return &Session{
		id:         id,
		logger:     logger.Named("session").With(zap.String("session_id", id[:8])),
		engine:     opts.Engine,
		strategy:   strategy,
		token:      opts.Token,
		navTimeout: navTimeout,
		tempDir:    opts.TempDir,
		recordMode: recordMode,
		state:      StateCreated,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ArtifactPath returns the in-flight artifact location, for diagnostics.
func (s *Session) ArtifactPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifactPath
}

// Launch opens the recording browsing context, injects authentication once,
// opens a page, and, when initialURL is non-empty, performs the first
// navigation inline. Recording starts when the context is created, not at
// first navigation, so the injected headers on the very first request are
// captured.
func (s *Session) Launch(ctx context.Context, initialURL string, wait WaitPolicy) error {
	s.mu.Lock()
	if s.state != StateCreated {
		st := s.state
		s.mu.Unlock()
		return &SessionError{Op: "launch", State: st, Message: "session can only be launched once, from the created state"}
	}
	s.state = StateInitializing
	s.mu.Unlock()

	tmp, err := os.CreateTemp(s.tempDir, "zapi-capture-*.har")
	if err != nil {
		return s.failInit("artifact allocation", err)
	}
	artifactPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(artifactPath)
		return s.failInit("artifact allocation", err)
	}
	s.mu.Lock()
	s.artifactPath = artifactPath
	s.mu.Unlock()

	bctx, err := s.engine.NewContext(ctx, ContextOptions{
		RecordPath: artifactPath,
		RecordMode: s.recordMode,
	})
	if err != nil {
		return s.failInit("context creation", err)
	}
	s.mu.Lock()
	s.bctx = bctx
	s.mu.Unlock()

	if err := s.strategy.Apply(ctx, bctx, s.token); err != nil {
		return s.failInit("authentication injection", err)
	}

	page, err := bctx.NewPage(ctx)
	if err != nil {
		return s.failInit("page creation", err)
	}
	s.mu.Lock()
	s.page = page
	s.state = StateReady
	s.mu.Unlock()

	s.logger.Info("Capture session launched",
		zap.String("auth_mode", s.strategy.Name()),
		zap.String("artifact", artifactPath))

	if initialURL != "" {
		return s.Navigate(ctx, initialURL, wait)
	}
	return nil
}

// Navigate drives the page to url, waiting per the policy under the session's
// navigation timeout. Failures are classified into the closed navigation
// taxonomy and move the session to the failed state.
func (s *Session) Navigate(ctx context.Context, url string, wait WaitPolicy) error {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return &SessionError{Op: "navigate", State: st, Message: "session is not ready for navigation"}
	}
	s.state = StateNavigating
	page := s.page
	s.mu.Unlock()

	if wait == "" {
		wait = WaitLoad
	}

	s.logger.Debug("Navigating", zap.String("url", url), zap.String("wait", string(wait)))
	if err := page.Goto(ctx, url, wait, s.navTimeout); err != nil {
		navErr := ClassifyNavigationError(url, err)
		s.setState(StateFailed)
		s.logger.Warn("Navigation failed",
			zap.String("url", url),
			zap.String("kind", string(navErr.Kind)),
			zap.Error(err))
		return navErr
	}

	s.setState(StateReady)
	return nil
}

// Finalize closes the browsing context, which flushes the recorded artifact,
// then copies it to destPath (creating parent directories), verifies the
// copy, and removes the temporary file. After Finalize only Close remains
// valid.
func (s *Session) Finalize(ctx context.Context, destPath string) error {
	s.mu.Lock()
	if s.state != StateReady {
		st := s.state
		s.mu.Unlock()
		return &SessionError{Op: "finalize", State: st, Message: "session has no open, idle capture to finalize"}
	}
	s.state = StateFinalizing
	bctx := s.bctx
	artifactPath := s.artifactPath
	s.mu.Unlock()

	if artifactPath == "" {
		s.setState(StateFailed)
		return &SessionError{Op: "finalize", State: StateFailed,
			Message: "no capture artifact exists; the session never completed launch"}
	}

	// Closing the context is what completes the artifact; it is unreadable
	// before this point.
	if err := bctx.Close(ctx); err != nil {
		s.setState(StateFailed)
		return &SessionError{Op: "finalize", State: StateFailed,
			Message: "failed to close browsing context", Err: err}
	}
	s.mu.Lock()
	s.bctx = nil
	s.page = nil
	s.mu.Unlock()

	if _, err := os.Stat(artifactPath); err != nil {
		s.setState(StateFailed)
		return &SessionError{Op: "finalize", State: StateFailed,
			Message: "capture artifact is missing; no traffic was recorded", Err: err}
	}

	if err := copyArtifact(artifactPath, destPath); err != nil {
		s.setState(StateFailed)
		return &SessionError{Op: "finalize", State: StateFailed,
			Message: fmt.Sprintf("cannot write artifact to %q", destPath), Err: err}
	}

	if err := os.Remove(artifactPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Could not remove temporary artifact", zap.String("path", artifactPath), zap.Error(err))
	}

	s.mu.Lock()
	s.artifactPath = ""
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Info("Capture finalized", zap.String("destination", destPath))
	return nil
}

// Close releases the context, the browser, and the engine handle, in that
// order, tolerating any of them being already released, and deletes the
// temporary artifact if still present. Safe to call repeatedly and from any
// state, including failed and mid-initialization. Teardown errors are logged,
// never returned, so they cannot mask an original in-flight error.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	bctx := s.bctx
	engine := s.engine
	artifactPath := s.artifactPath
	s.bctx = nil
	s.page = nil
	s.engine = nil
	s.artifactPath = ""
	s.state = StateClosed
	s.mu.Unlock()

	var teardownErr error
	if bctx != nil {
		teardownErr = multierr.Append(teardownErr, bctx.Close(ctx))
	}
	if engine != nil {
		teardownErr = multierr.Append(teardownErr, engine.Close(ctx))
	}
	if artifactPath != "" {
		if err := os.Remove(artifactPath); err != nil && !os.IsNotExist(err) {
			teardownErr = multierr.Append(teardownErr, err)
		}
	}
	if teardownErr != nil {
		s.logger.Warn("Errors during session teardown", zap.Error(teardownErr))
	}
	return nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) failInit(stage string, err error) error {
	s.setState(StateFailed)
	s.logger.Error("Session initialization failed",
		zap.String("stage", stage), zap.Error(err))
	return &InitializationError{Stage: stage, Err: err}
}

// copyArtifact copies src to dest, creating parent directories and verifying
// the destination exists afterwards.
func copyArtifact(src, dest string) error {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create destination directory: %w", err)
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("flush destination: %w", err)
	}

	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("verify destination: %w", err)
	}
	return nil
}
