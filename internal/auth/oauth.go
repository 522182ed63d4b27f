// Package auth implements the Google OAuth connect flow and refresh-token
// exchange for the Drive integration.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Service handles the OAuth2 authorization flow. The state parameter carries
// the profile id as a signed JWT so the callback can attribute the returned
// code without a server-side session.
type Service struct {
	oauthConfig *oauth2.Config
	jwtSecret   string

	// tokenURL overrides the provider token endpoint, for tests.
	tokenURL string
}

// NewService creates a new auth Service.
// The oauthConfig should be constructed by the caller (e.g., from resolved
// secrets and environment variables).
func NewService(oauthConfig *oauth2.Config, jwtSecret string) *Service {
	return &Service{oauthConfig: oauthConfig, jwtSecret: jwtSecret}
}

// Config returns the OAuth2 config.
func (s *Service) Config() *oauth2.Config {
	return s.oauthConfig
}

// GenerateAuthURL returns the Google consent URL for the given profile.
// access_type=offline plus forced approval so a refresh token is always
// issued, even on re-consent.
func (s *Service) GenerateAuthURL(profileID string) (string, error) {
	state, err := s.signState(profileID)
	if err != nil {
		return "", err
	}
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// ExchangeCode exchanges the authorization code for a token.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.oauthConfig.Exchange(ctx, code)
}

func (s *Service) signState(profileID string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   profileID,
		"nonce": uuid.NewString(),
		"exp":   time.Now().Add(10 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// ParseState validates the state JWT from the OAuth callback and returns the
// profile id it was issued for.
func (s *Service) ParseState(state string) (string, error) {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid state: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub, nil
		}
	}
	return "", fmt.Errorf("invalid state claims")
}
