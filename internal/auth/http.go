package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds one round trip to the provider.
const DefaultTimeout = 5 * time.Second

// HTTPProvider talks to an external web API: one POST per attempt, a JSON
// status string back. Network failures map to ResultUnreachable, bodies
// that do not parse to ResultMalformedResponse.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given base URL. A nil
// client gets a default with a request timeout.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPProvider{baseURL: baseURL, client: client}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Register bool   `json:"register"`
}

type authResponse struct {
	Status string `json:"status"`
}

// Authenticate posts the credentials and maps the provider's status string
// to a Result.
func (p *HTTPProvider) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	body, err := json.Marshal(authRequest{
		Username: creds.Username,
		Password: creds.Password,
		Email:    creds.Email,
		Register: creds.Register,
	})
	if err != nil {
		return ResultMalformedResponse, fmt.Errorf("encoding auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return ResultUnreachable, fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return ResultUnreachable, fmt.Errorf("calling auth provider: %w", err)
	}
	defer resp.Body.Close()

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ResultMalformedResponse, fmt.Errorf("decoding auth response: %w", err)
	}

	switch parsed.Status {
	case "ok":
		return ResultOK, nil
	case "userexists":
		return ResultUsernameTaken, nil
	case "emailexists":
		return ResultEmailTaken, nil
	case "invalidlogin":
		return ResultInvalidCredentials, nil
	default:
		return ResultMalformedResponse, fmt.Errorf("auth provider returned unknown status %q", parsed.Status)
	}
}
