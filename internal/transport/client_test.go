package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adopt-ai/zapi-go/internal/config"
	"github.com/adopt-ai/zapi-go/pkg/errs"
	"github.com/adopt-ai/zapi-go/pkg/schemas"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(config.APIConfig{
		AuthBaseURL:    server.URL,
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
		UploadTimeout:  5 * time.Second,
	}, zap.NewNop())
	return client, server
}

func TestExchangeToken(t *testing.T) {
	t.Run("token field", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/auth/token", r.URL.Path)

			var req schemas.TokenRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "client-1", req.ClientID)
			assert.Equal(t, "s3cret", req.Secret)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"token":"tok-abc"}`))
		}))

		token, err := client.ExchangeToken(context.Background(), "client-1", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "tok-abc", token)
	})

	t.Run("access_token field", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"tok-xyz"}`))
		}))

		token, err := client.ExchangeToken(context.Background(), "client-1", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "tok-xyz", token)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := client.ExchangeToken(context.Background(), "client-1", "wrong")
		var authErr *errs.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	})

	t.Run("empty token response", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))

		_, err := client.ExchangeToken(context.Background(), "client-1", "s3cret")
		var netErr *errs.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Contains(t, netErr.Message, "no token")
	})

	t.Run("server error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.ExchangeToken(context.Background(), "client-1", "s3cret")
		var netErr *errs.NetworkError
		require.ErrorAs(t, err, &netErr)
	})
}

func TestExchangeTokenConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close() // nothing listens anymore

	client := New(config.APIConfig{
		AuthBaseURL:    url,
		BaseURL:        url,
		RequestTimeout: 2 * time.Second,
		UploadTimeout:  2 * time.Second,
	}, zap.NewNop())

	_, err := client.ExchangeToken(context.Background(), "client-1", "s3cret")
	var netErr *errs.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "token exchange", netErr.Op)
}

func TestValidateToken(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/auth/validate-token", r.URL.Path)
			assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
			w.Write([]byte(`{"valid":true,"org_id":"org-1","user_email":"dev@example.com"}`))
		}))

		v, err := client.ValidateToken(context.Background(), "tok-abc")
		require.NoError(t, err)
		assert.Equal(t, "org-1", v.OrgID)
		assert.Equal(t, "dev@example.com", v.UserEmail)
	})

	t.Run("invalid token flag", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"valid":false}`))
		}))

		_, err := client.ValidateToken(context.Background(), "tok-abc")
		var authErr *errs.AuthenticationError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("missing org id", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"valid":true}`))
		}))

		_, err := client.ValidateToken(context.Background(), "tok-abc")
		var netErr *errs.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Contains(t, netErr.Message, "org_id")
	})

	t.Run("rejected token", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

		_, err := client.ValidateToken(context.Background(), "tok-abc")
		var authErr *errs.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	})
}

func TestUploadArtifact(t *testing.T) {
	writeArtifact := func(t *testing.T) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "capture.har")
		require.NoError(t, os.WriteFile(path, []byte(`{"log":{"entries":[]}}`), 0o600))
		return path
	}

	t.Run("multipart body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/api-discovery/upload-file", r.URL.Path)
			assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

			require.NoError(t, r.ParseMultipartForm(1<<20))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "capture.har", header.Filename)

			var meta schemas.UploadMetadata
			require.NoError(t, json.Unmarshal([]byte(r.FormValue("metadata")), &meta))
			assert.True(t, meta.ByokEnabled)
			assert.Equal(t, "anthropic", meta.ByokProvider)
			assert.Equal(t, "dev@example.com", meta.UserEmail)

			w.Write([]byte(`{"status":"accepted","id":"upload-1"}`))
		}))
		client.SetToken("tok-abc")

		resp, err := client.UploadArtifact(context.Background(), writeArtifact(t), schemas.UploadMetadata{
			ByokEnabled:      true,
			ByokEncryptedKey: "blob",
			ByokProvider:     "anthropic",
			UserEmail:        "dev@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "upload-1", resp.ID)
	})

	t.Run("missing file", func(t *testing.T) {
		client, _ := newTestClient(t, http.NotFoundHandler())

		_, err := client.UploadArtifact(context.Background(),
			filepath.Join(t.TempDir(), "nope.har"), schemas.UploadMetadata{})
		var valErr *errs.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Contains(t, valErr.Message, "does not exist")
	})

	t.Run("payload too large", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}))
		client.SetToken("tok-abc")

		_, err := client.UploadArtifact(context.Background(), writeArtifact(t), schemas.UploadMetadata{})
		var valErr *errs.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Contains(t, valErr.Message, "size limit")
	})

	t.Run("expired token", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		client.SetToken("tok-old")

		_, err := client.UploadArtifact(context.Background(), writeArtifact(t), schemas.UploadMetadata{})
		var authErr *errs.AuthenticationError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("empty response body is tolerated", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		client.SetToken("tok-abc")

		resp, err := client.UploadArtifact(context.Background(), writeArtifact(t), schemas.UploadMetadata{})
		require.NoError(t, err)
		assert.Empty(t, resp.ID)
	})
}
