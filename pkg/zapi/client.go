// Package zapi is the public facade of the capture client: authenticate,
// optionally configure a BYOK LLM credential, run a recorded browser session,
// and upload the resulting artifact.
package zapi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/internal/config"
	"github.com/adopt-ai/zapi-go/internal/transport"
	"github.com/adopt-ai/zapi-go/internal/vault"
	"github.com/adopt-ai/zapi-go/pkg/browser"
	"github.com/adopt-ai/zapi-go/pkg/browser/cdp"
	"github.com/adopt-ai/zapi-go/pkg/errs"
	"github.com/adopt-ai/zapi-go/pkg/schemas"
)

// Client is the top-level entry point. It is not safe for concurrent use;
// run one Client per goroutine or serialize access externally.
type Client struct {
	cfg       *config.Config
	logger    *zap.Logger
	transport *transport.Client
	vault     *vault.Vault

	token     string
	orgID     string
	userEmail string

	// newEngine is swappable so tests can substitute a fake browser.
	newEngine func(ctx context.Context) (browser.Engine, error)
}

// New builds a Client from validated configuration.
func New(cfg *config.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		cfg:       cfg,
		logger:    logger.Named("zapi"),
		transport: transport.New(cfg.API, logger),
	}
	c.newEngine = func(ctx context.Context) (browser.Engine, error) {
		return cdp.NewEngine(ctx, cdp.Options{
			Headless:        cfg.Browser.Headless,
			IgnoreTLSErrors: cfg.Browser.IgnoreTLSErrors,
			UserAgent:       cfg.Browser.UserAgent,
			ExecPath:        cfg.Browser.ExecPath,
			ExtraArgs:       cfg.Browser.Args,
		}, logger)
	}
	return c
}

// Authenticate exchanges client credentials for a bearer token, validates it,
// and binds the client to the returned organization. Must succeed before any
// session or upload operation.
func (c *Client) Authenticate(ctx context.Context, clientID, secret string) error {
	if clientID == "" {
		return errs.Validation("client_id", "client id cannot be empty", errs.ErrEmptyClientID)
	}
	if secret == "" {
		return errs.Validation("secret", "secret cannot be empty", errs.ErrEmptySecret)
	}

	token, err := c.transport.ExchangeToken(ctx, clientID, secret)
	if err != nil {
		return err
	}
	inspectToken(token, c.logger)

	validation, err := c.transport.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	v, err := vault.New(validation.OrgID, c.logger)
	if err != nil {
		return fmt.Errorf("initialize credential vault: %w", err)
	}

	c.token = token
	c.orgID = validation.OrgID
	c.userEmail = validation.UserEmail
	c.vault = v
	c.transport.SetToken(token)

	c.logger.Info("Authenticated",
		zap.String("org_id", c.orgID),
		zap.String("user_email", c.userEmail))
	return nil
}

// IsAuthenticated reports whether Authenticate has succeeded.
func (c *Client) IsAuthenticated() bool { return c.token != "" }

// Token returns the bearer token, or "" before authentication.
func (c *Client) Token() string { return c.token }

// OrgID returns the organization bound to the token, or "" before
// authentication.
func (c *Client) OrgID() string { return c.orgID }

// UserEmail returns the email bound to the token, or "" before authentication.
func (c *Client) UserEmail() string { return c.userEmail }

// SetLLMKey validates and encrypts a BYOK credential under the authenticated
// organization's context. Passing empty provider and key clears any
// configured credential.
func (c *Client) SetLLMKey(provider, apiKey, modelName string) error {
	if c.vault == nil {
		return &errs.AuthenticationError{Message: "cannot configure an LLM credential before authentication", Err: errs.ErrNotAuthenticated}
	}
	return c.vault.SetKey(provider, apiKey, modelName)
}

// HasLLMKey reports whether a BYOK credential is configured.
func (c *Client) HasLLMKey() bool { return c.vault != nil && c.vault.HasKey() }

// LLMProvider returns the configured provider name, or "".
func (c *Client) LLMProvider() string {
	if c.vault == nil {
		return ""
	}
	return c.vault.Provider()
}

// LLMModel returns the configured model name, or "".
func (c *Client) LLMModel() string {
	if c.vault == nil {
		return ""
	}
	return c.vault.ModelName()
}

// LaunchSession starts the browser, opens a recording session authenticated
// with the client's token, and, when initialURL is non-empty, performs the
// first navigation. The caller owns the returned session and must Close it.
func (c *Client) LaunchSession(ctx context.Context, initialURL string) (*browser.Session, error) {
	if !c.IsAuthenticated() {
		return nil, &errs.AuthenticationError{Message: "cannot launch a session before authentication", Err: errs.ErrNotAuthenticated}
	}

	engine, err := c.newEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser engine: %w", err)
	}

	session, err := browser.NewSession(browser.Options{
		Engine:            engine,
		Token:             c.token,
		AuthMode:          browser.AuthMode(c.cfg.Session.AuthMode),
		NavigationTimeout: c.cfg.Network.NavigationTimeout,
		TempDir:           c.cfg.Session.TempDir,
		Logger:            c.logger,
	})
	if err != nil {
		engine.Close(ctx)
		return nil, err
	}

	if err := session.Launch(ctx, initialURL, browser.WaitPolicy(c.cfg.Network.WaitPolicy)); err != nil {
		session.Close(ctx)
		return nil, err
	}
	return session, nil
}

// UploadArtifact submits a finalized capture artifact together with the
// client's BYOK metadata.
func (c *Client) UploadArtifact(ctx context.Context, path string) (*schemas.UploadResponse, error) {
	if !c.IsAuthenticated() {
		return nil, &errs.AuthenticationError{Message: "cannot upload before authentication", Err: errs.ErrNotAuthenticated}
	}

	meta := schemas.UploadMetadata{UserEmail: c.userEmail}
	if c.vault.HasKey() {
		meta.ByokEnabled = true
		meta.ByokEncryptedKey = c.vault.EncryptedKey()
		meta.ByokProvider = c.vault.Provider()
		meta.ByokModel = c.vault.ModelName()
	}
	return c.transport.UploadArtifact(ctx, path, meta)
}
