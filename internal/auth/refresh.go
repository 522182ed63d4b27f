package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RefreshResult is the provider's token endpoint response, verbatim. When the
// provider rejects the refresh token it answers 200-family JSON with the
// Error fields set; callers must check Error before using AccessToken.
type RefreshResult struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh exchanges a refresh token for a short-lived access token with a
// single POST to the provider's token endpoint. Provider-level errors are
// returned inside RefreshResult, not as a Go error; only transport and decode
// failures error out. No retries.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	endpoint := s.tokenURL
	if endpoint == "" {
		endpoint = s.oauthConfig.Endpoint.TokenURL
	}

	form := url.Values{
		"client_id":     {s.oauthConfig.ClientID},
		"client_secret": {s.oauthConfig.ClientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token endpoint response: %w", err)
	}

	var result RefreshResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unexpected token endpoint response (%d): %s", resp.StatusCode, body)
	}
	return &result, nil
}
