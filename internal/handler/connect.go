package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/msa-world/geoinformatic-drive/internal/auth"
)

// ConnectHandler serves the OAuth connect lifecycle: consent redirect,
// callback, connection status, disconnect.
type ConnectHandler struct {
	accounts    AccountStore
	authService *auth.Service
	jwtSecret   string
	adminSecret string
	frontendURL string
}

// NewConnectHandler creates a new ConnectHandler. frontendURL is where the
// callback redirects back to.
func NewConnectHandler(accounts AccountStore, authService *auth.Service, jwtSecret, adminSecret, frontendURL string) *ConnectHandler {
	return &ConnectHandler{
		accounts:    accounts,
		authService: authService,
		jwtSecret:   jwtSecret,
		adminSecret: adminSecret,
		frontendURL: frontendURL,
	}
}

func redirect(location string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": location,
		},
	}
}

// Connect handles GET /drive/connect: redirects to the Google consent page
// with the acting profile id signed into the state parameter.
func (h *ConnectHandler) Connect(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	authURL, err := h.authService.GenerateAuthURL(profileID)
	if err != nil {
		fmt.Printf("GenerateAuthURL error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to start Google Drive connection"), nil
	}

	return redirect(authURL), nil
}

// Callback handles GET /drive/callback: validates state, exchanges the code,
// and persists the refresh token before bouncing back to the site.
func (h *ConnectHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	code := req.QueryStringParameters["code"]
	state := req.QueryStringParameters["state"]
	if code == "" || state == "" {
		return failure(http.StatusBadRequest, "Missing code or state"), nil
	}

	profileID, err := h.authService.ParseState(state)
	if err != nil {
		fmt.Printf("ParseState error: %v\n", err)
		return failure(http.StatusBadRequest, "Invalid state"), nil
	}

	token, err := h.authService.ExchangeCode(ctx, code)
	if err != nil {
		fmt.Printf("ExchangeCode error: %v\n", err)
		return redirect(h.frontendURL + "/profile?drive=error"), nil
	}

	if err := h.accounts.SaveRefreshToken(ctx, profileID, token.RefreshToken); err != nil {
		fmt.Printf("SaveRefreshToken error for %s: %v\n", profileID, err)
		return redirect(h.frontendURL + "/profile?drive=error"), nil
	}

	return redirect(h.frontendURL + "/profile?drive=connected"), nil
}

// Status handles GET /drive/status without touching Google: token presence
// and the recorded app folder id only.
func (h *ConnectHandler) Status(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	refreshToken, err := h.accounts.RefreshToken(ctx, profileID)
	if err != nil {
		fmt.Printf("RefreshToken error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to read connection status"), nil
	}

	folderID, err := h.accounts.AppFolderID(ctx, profileID)
	if err != nil {
		fmt.Printf("AppFolderID error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to read connection status"), nil
	}

	connectedAt, _ := h.accounts.ConnectedAt(ctx, profileID)

	resp := struct {
		Success     bool   `json:"success"`
		Connected   bool   `json:"connected"`
		AppFolderID string `json:"appFolderId,omitempty"`
		ConnectedAt string `json:"connectedAt,omitempty"`
	}{
		Success:     true,
		Connected:   refreshToken != "",
		AppFolderID: folderID,
	}
	if !connectedAt.IsZero() {
		resp.ConnectedAt = connectedAt.Format(time.RFC3339)
	}

	return jsonResponse(http.StatusOK, resp), nil
}

// Disconnect handles POST /drive/disconnect: drops the stored credentials.
func (h *ConnectHandler) Disconnect(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	if err := h.accounts.Disconnect(ctx, profileID); err != nil {
		fmt.Printf("Disconnect error for %s: %v\n", profileID, err)
		return failure(http.StatusInternalServerError, "Failed to disconnect Google Drive"), nil
	}

	return jsonResponse(http.StatusOK, map[string]any{"success": true}), nil
}
