package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "zapi", cfg.Logger.ServiceName)

	assert.Equal(t, "https://connect.adopt.ai", cfg.API.AuthBaseURL)
	assert.Equal(t, "https://api.adopt.ai", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.API.UploadTimeout)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, "load", cfg.Network.WaitPolicy)
	assert.Equal(t, "header", cfg.Session.AuthMode)

	// The tilde is expanded.
	assert.NotContains(t, cfg.Session.OutputDir, "~")
	assert.Contains(t, cfg.Session.OutputDir, ".zapi")
}

func TestCredentialsComeFromEnvironment(t *testing.T) {
	t.Setenv("ZAPI_CLIENT_ID", "client-env")
	t.Setenv("ZAPI_SECRET", "secret-env")
	t.Setenv("ZAPI_LLM_PROVIDER", "anthropic")
	t.Setenv("ZAPI_LLM_MODEL", "claude-sonnet-4")
	t.Setenv("ZAPI_LLM_API_KEY", "sk-ant-REDACTED")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "client-env", cfg.Credentials.ClientID)
	assert.Equal(t, "secret-env", cfg.Credentials.Secret)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4", cfg.LLM.Model)
	assert.Equal(t, "sk-ant-REDACTED", cfg.LLM.APIKey)
}

func TestConfigOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("api.auth_base_url", "https://auth.staging.example.com")
	v.Set("network.navigation_timeout", "45s")
	v.Set("session.auth_mode", "cookie")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.staging.example.com", cfg.API.AuthBaseURL)
	assert.Equal(t, 45*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, "cookie", cfg.Session.AuthMode)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(v *viper.Viper)
		wantErr string
	}{
		{"empty auth base url", func(v *viper.Viper) { v.Set("api.auth_base_url", "") }, "auth_base_url"},
		{"empty base url", func(v *viper.Viper) { v.Set("api.base_url", "") }, "base_url"},
		{"zero request timeout", func(v *viper.Viper) { v.Set("api.request_timeout", "0s") }, "request_timeout"},
		{"negative upload timeout", func(v *viper.Viper) { v.Set("api.upload_timeout", "-5s") }, "upload_timeout"},
		{"zero navigation timeout", func(v *viper.Viper) { v.Set("network.navigation_timeout", "0s") }, "navigation_timeout"},
		{"bad auth mode", func(v *viper.Viper) { v.Set("session.auth_mode", "basic") }, "auth_mode"},
		{"bad wait policy", func(v *viper.Viper) { v.Set("network.wait_policy", "eventually") }, "wait_policy"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tc.mutate(v)

			_, err := NewConfigFromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
