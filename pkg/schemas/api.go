package schemas

// -- Wire schemas for the remote auth and upload endpoints --

// TokenRequest is the body of POST {authBase}/v1/auth/token.
type TokenRequest struct {
	ClientID string `json:"clientId"`
	Secret   string `json:"secret"`
}

// TokenResponse tolerates both field names the exchange endpoint has used.
type TokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

// BearerToken returns whichever token field was populated.
func (r *TokenResponse) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// ValidateTokenResponse is the body returned by
// POST {authBase}/v1/auth/validate-token.
type ValidateTokenResponse struct {
	Valid     bool   `json:"valid"`
	OrgID     string `json:"org_id"`
	UserEmail string `json:"user_email"`
}

// UploadMetadata is the metadata form field of the multipart upload request.
// The BYOK fields are present only when a credential is configured.
type UploadMetadata struct {
	ByokEnabled      bool   `json:"byok_enabled"`
	ByokEncryptedKey string `json:"byok_encrypted_key,omitempty"`
	ByokProvider     string `json:"byok_provider,omitempty"`
	ByokModel        string `json:"byok_model,omitempty"`
	UserEmail        string `json:"user_email,omitempty"`
}

// UploadResponse is the body returned by the upload endpoint.
type UploadResponse struct {
	Status string `json:"status,omitempty"`
	ID     string `json:"id,omitempty"`
}
