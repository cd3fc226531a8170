// Package transport implements the HTTP client for the remote auth and
// upload endpoints. Every call carries a bounded timeout; nothing here
// retries, that policy belongs to callers.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/adopt-ai/zapi-go/internal/config"
	"github.com/adopt-ai/zapi-go/pkg/errs"
	"github.com/adopt-ai/zapi-go/pkg/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	tokenPath    = "/v1/auth/token"
	validatePath = "/v1/auth/validate-token"
	uploadPath   = "/v1/api-discovery/upload-file"
)

// Client talks to the remote auth and discovery services.
type Client struct {
	httpClient     *http.Client
	authBase       string
	apiBase        string
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	logger         *zap.Logger
	token          string
}

// New builds a Client with a tuned transport.
func New(cfg config.APIConfig, logger *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 15 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
	// Prefer HTTP/2 when the server supports it.
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn("HTTP/2 unavailable, falling back to HTTP/1.1", zap.Error(err))
	}

	return &Client{
		httpClient:     &http.Client{Transport: transport},
		authBase:       strings.TrimRight(cfg.AuthBaseURL, "/"),
		apiBase:        strings.TrimRight(cfg.BaseURL, "/"),
		requestTimeout: cfg.RequestTimeout,
		uploadTimeout:  cfg.UploadTimeout,
		logger:         logger.Named("transport"),
	}
}

// SetToken installs the bearer token used by authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// ExchangeToken trades client credentials for a bearer token.
func (c *Client) ExchangeToken(ctx context.Context, clientID, secret string) (string, error) {
	body, err := json.Marshal(schemas.TokenRequest{ClientID: clientID, Secret: secret})
	if err != nil {
		return "", &errs.CoreError{Code: errs.CodeCore, Message: "encode token request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", &errs.CoreError{Code: errs.CodeCore, Message: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", networkError("token exchange", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &errs.AuthenticationError{
			StatusCode: resp.StatusCode,
			Message:    "client id or secret rejected by the token endpoint",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &errs.NetworkError{
			Op:      "token exchange",
			Message: fmt.Sprintf("unexpected HTTP %d from %s", resp.StatusCode, tokenPath),
		}
	}

	var tokenResp schemas.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &errs.NetworkError{Op: "token exchange", Message: "malformed response body", Err: err}
	}
	token := tokenResp.BearerToken()
	if token == "" {
		return "", &errs.NetworkError{Op: "token exchange", Message: "response contained no token"}
	}
	return token, nil
}

// ValidateToken checks the bearer token with the remote service and returns
// the org identity and user email bound to it.
func (c *Client) ValidateToken(ctx context.Context, token string) (*schemas.ValidateTokenResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+validatePath, nil)
	if err != nil {
		return nil, &errs.CoreError{Code: errs.CodeCore, Message: "build validation request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError("token validation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &errs.AuthenticationError{
			StatusCode: resp.StatusCode,
			Message:    "token rejected by the validation endpoint",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errs.NetworkError{
			Op:      "token validation",
			Message: fmt.Sprintf("unexpected HTTP %d from %s", resp.StatusCode, validatePath),
		}
	}

	var validation schemas.ValidateTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&validation); err != nil {
		return nil, &errs.NetworkError{Op: "token validation", Message: "malformed response body", Err: err}
	}
	if !validation.Valid {
		return nil, &errs.AuthenticationError{Message: "token reported invalid by the validation endpoint"}
	}
	if validation.OrgID == "" {
		return nil, &errs.NetworkError{Op: "token validation", Message: "response contained no org_id"}
	}
	return &validation, nil
}

// UploadArtifact submits the capture artifact plus its metadata as a
// multipart request.
func (c *Client) UploadArtifact(ctx context.Context, path string, meta schemas.UploadMetadata) (*schemas.UploadResponse, error) {
	file, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, &errs.ValidationError{Field: "path", Message: fmt.Sprintf("artifact %q does not exist", path), Err: err}
		case os.IsPermission(err):
			return nil, &errs.ValidationError{Field: "path", Message: fmt.Sprintf("artifact %q is not readable", path), Err: err}
		default:
			return nil, &errs.ValidationError{Field: "path", Message: fmt.Sprintf("cannot open artifact %q", path), Err: err}
		}
	}
	defer file.Close()

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, &errs.CoreError{Code: errs.CodeCore, Message: "encode upload metadata", Err: err}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, &errs.CoreError{Code: errs.CodeCore, Message: "build multipart body", Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, &errs.ValidationError{Field: "path", Message: "failed reading artifact", Err: err}
	}
	if err := writer.WriteField("metadata", string(metaJSON)); err != nil {
		return nil, &errs.CoreError{Code: errs.CodeCore, Message: "build multipart body", Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &errs.CoreError{Code: errs.CodeCore, Message: "build multipart body", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+uploadPath, &body)
	if err != nil {
		return nil, &errs.CoreError{Code: errs.CodeCore, Message: "build upload request", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	c.logger.Info("Uploading capture artifact",
		zap.String("file", filepath.Base(path)),
		zap.Bool("byok_enabled", meta.ByokEnabled))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError("upload", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &errs.AuthenticationError{StatusCode: resp.StatusCode, Message: "token rejected by the upload endpoint"}
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, &errs.ValidationError{Field: "path", Message: "artifact exceeds the upload size limit"}
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &errs.ValidationError{Message: "upload rejected as malformed by the server"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &errs.NetworkError{
			Op:      "upload",
			Message: fmt.Sprintf("unexpected HTTP %d from %s", resp.StatusCode, uploadPath),
		}
	}

	var uploadResp schemas.UploadResponse
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.NetworkError{Op: "upload", Message: "failed reading response body", Err: err}
	}
	// Some deployments answer 204 with no body at all.
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &uploadResp); err != nil {
			return nil, &errs.NetworkError{Op: "upload", Message: "malformed response body", Err: err}
		}
	}
	return &uploadResp, nil
}

// networkError classifies a transport-level failure with actionable text.
func networkError(op string, err error) *errs.NetworkError {
	msg := "request failed"
	var urlErr *url.Error
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &urlErr) && urlErr.Timeout():
		msg = "request timed out; the service may be slow or unreachable"
	case errors.As(err, &dnsErr):
		msg = "DNS resolution failed; check the configured base URL and your connection"
	case errors.As(err, &urlErr):
		msg = "connection failed; check your network and the configured base URL"
	}
	return &errs.NetworkError{Op: op, Message: msg, Err: err}
}
