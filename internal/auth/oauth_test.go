package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func testService() *Service {
	return NewService(&oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:3000/api/drive/callback",
	}, "test-secret")
}

func TestService_GenerateAuthURL(t *testing.T) {
	s := testService()

	authURL, err := s.GenerateAuthURL("profile-1")
	if err != nil {
		t.Fatalf("GenerateAuthURL failed: %v", err)
	}
	if !strings.Contains(authURL, "test-client-id") {
		t.Errorf("Expected URL to contain client ID, got '%s'", authURL)
	}
	if !strings.Contains(authURL, "access_type=offline") {
		t.Errorf("Expected offline access type, got '%s'", authURL)
	}

	// The state must round-trip back to the profile id.
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("failed to parse auth URL: %v", err)
	}
	state := parsed.Query().Get("state")
	if state == "" {
		t.Fatal("Expected state parameter in auth URL")
	}
	profileID, err := s.ParseState(state)
	if err != nil {
		t.Fatalf("ParseState failed: %v", err)
	}
	if profileID != "profile-1" {
		t.Errorf("Expected profile-1 from state, got '%s'", profileID)
	}
}

func TestService_ParseState_Invalid(t *testing.T) {
	s := testService()

	tests := []struct {
		name  string
		state string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", func() string {
			other := NewService(&oauth2.Config{}, "other-secret")
			state, _ := other.signState("profile-1")
			return state
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.ParseState(tt.state); err == nil {
				t.Error("Expected error for invalid state, got nil")
			}
		})
	}
}

func TestService_Refresh_Success(t *testing.T) {
	var gotForm url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"expires_in":   3599,
			"scope":        "https://www.googleapis.com/auth/drive.file",
			"token_type":   "Bearer",
		})
	}))
	defer ts.Close()

	s := testService()
	s.tokenURL = ts.URL

	result, err := s.Refresh(context.Background(), "refresh-abc")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("Expected no provider error, got %q", result.Error)
	}
	if result.AccessToken != "at-123" {
		t.Errorf("Expected access token 'at-123', got '%s'", result.AccessToken)
	}
	if result.ExpiresIn != 3599 {
		t.Errorf("Expected expires_in 3599, got %d", result.ExpiresIn)
	}

	if gotForm.Get("grant_type") != "refresh_token" {
		t.Errorf("Expected grant_type refresh_token, got '%s'", gotForm.Get("grant_type"))
	}
	if gotForm.Get("refresh_token") != "refresh-abc" {
		t.Errorf("Expected refresh token in form, got '%s'", gotForm.Get("refresh_token"))
	}
	if gotForm.Get("client_id") != "test-client-id" || gotForm.Get("client_secret") != "test-client-secret" {
		t.Error("Expected client credentials in form")
	}
}

func TestService_Refresh_ProviderError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "Token has been expired or revoked.",
		})
	}))
	defer ts.Close()

	s := testService()
	s.tokenURL = ts.URL

	// Provider-level rejection comes back in the result, not as a Go error.
	result, err := s.Refresh(context.Background(), "revoked-token")
	if err != nil {
		t.Fatalf("Refresh must not error on provider rejection: %v", err)
	}
	if result.Error != "invalid_grant" {
		t.Errorf("Expected error 'invalid_grant', got '%s'", result.Error)
	}
	if result.ErrorDescription == "" {
		t.Error("Expected provider error description to be preserved")
	}
}

func TestService_Refresh_NonJSONResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>Bad Gateway</html>"))
	}))
	defer ts.Close()

	s := testService()
	s.tokenURL = ts.URL

	if _, err := s.Refresh(context.Background(), "refresh-abc"); err == nil {
		t.Fatal("Expected error for non-JSON response, got nil")
	}
}

func TestService_Refresh_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // connection refused

	s := testService()
	s.tokenURL = ts.URL

	if _, err := s.Refresh(context.Background(), "refresh-abc"); err == nil {
		t.Fatal("Expected transport error, got nil")
	}
}
