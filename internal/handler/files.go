package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/msa-world/geoinformatic-drive/internal/auth"
	"github.com/msa-world/geoinformatic-drive/internal/drive"
	"github.com/msa-world/geoinformatic-drive/internal/model"
)

const (
	msgNotConnected = "User not connected to Google Drive"
	msgNotAllowed   = "File or folder is outside the app folder"
)

// AccountStore is the credential persistence the handlers depend on.
type AccountStore interface {
	RefreshToken(ctx context.Context, profileID string) (string, error)
	SaveRefreshToken(ctx context.Context, profileID, refreshToken string) error
	CacheAccessToken(ctx context.Context, profileID, accessToken string) error
	AppFolderID(ctx context.Context, profileID string) (string, error)
	SetAppFolderID(ctx context.Context, profileID, folderID string) error
	Disconnect(ctx context.Context, profileID string) error
	ConnectedAt(ctx context.Context, profileID string) (time.Time, error)
}

// FileHandler serves the folder-scoped file operations: list, upload,
// download, delete. Every operation resolves a fresh access token and
// validates containment before touching Drive.
type FileHandler struct {
	accounts    AccountStore
	authService *auth.Service
	newClient   drive.ClientFactory
	jwtSecret   string
	adminSecret string
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(accounts AccountStore, authService *auth.Service, newClient drive.ClientFactory, jwtSecret, adminSecret string) *FileHandler {
	return &FileHandler{
		accounts:    accounts,
		authService: authService,
		newClient:   newClient,
		jwtSecret:   jwtSecret,
		adminSecret: adminSecret,
	}
}

// clientFor resolves the user's refresh token, exchanges it for an access
// token, and returns an authenticated Drive client. No cross-request token
// cache: each operation refreshes independently.
func (h *FileHandler) clientFor(ctx context.Context, profileID string) (*drive.Client, error) {
	refreshToken, err := h.accounts.RefreshToken(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve refresh token: %w", err)
	}
	if refreshToken == "" {
		return nil, drive.ErrNotConnected
	}

	result, err := h.authService.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("token refresh rejected: %s: %s", result.Error, result.ErrorDescription)
	}

	if err := h.accounts.CacheAccessToken(ctx, profileID, result.AccessToken); err != nil {
		fmt.Printf("CacheAccessToken error for %s: %v\n", profileID, err)
	}

	return h.newClient(ctx, result.AccessToken)
}

// ensureAppFolder returns the user's app-root folder id, provisioning and
// persisting it when absent.
func (h *FileHandler) ensureAppFolder(ctx context.Context, profileID string, client *drive.Client) (string, error) {
	folderID, err := h.accounts.AppFolderID(ctx, profileID)
	if err != nil {
		return "", err
	}
	if folderID != "" {
		return folderID, nil
	}

	folderID, err = client.EnsureAppFolder(ctx)
	if err != nil {
		return "", err
	}
	if err := h.accounts.SetAppFolderID(ctx, profileID, folderID); err != nil {
		fmt.Printf("SetAppFolderID error for %s: %v\n", profileID, err)
	}
	return folderID, nil
}

// ListFiles handles GET /drive/files.
func (h *FileHandler) ListFiles(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	client, err := h.clientFor(ctx, profileID)
	if err != nil {
		if errors.Is(err, drive.ErrNotConnected) {
			return failure(http.StatusBadRequest, msgNotConnected), nil
		}
		fmt.Printf("ListFiles token error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to refresh Google Drive access"), nil
	}

	rootID, err := h.accounts.AppFolderID(ctx, profileID)
	if err != nil {
		fmt.Printf("AppFolderID error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to resolve app folder"), nil
	}

	parentID := req.QueryStringParameters["folderId"]
	if parentID == "" {
		parentID, err = h.ensureAppFolder(ctx, profileID, client)
		if err != nil {
			fmt.Printf("ensureAppFolder error: %v\n", err)
			return failure(http.StatusInternalServerError, "Failed to prepare Google Drive folder"), nil
		}
	} else if parentID != rootID && !client.IsDescendant(ctx, parentID, rootID) {
		return failure(http.StatusForbidden, msgNotAllowed), nil
	}

	files, err := client.ListFiles(ctx, parentID, req.QueryStringParameters["search"])
	if err != nil {
		fmt.Printf("ListFiles error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to list Google Drive files"), nil
	}

	return jsonResponse(http.StatusOK, struct {
		Success bool                   `json:"success"`
		Files   []model.FileDescriptor `json:"files"`
	}{true, files}), nil
}

// UploadFile handles POST /drive/files.
func (h *FileHandler) UploadFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	var input struct {
		FileName string `json:"fileName"`
		MimeType string `json:"mimeType"`
		FileData string `json:"fileData"`
		FolderID string `json:"folderId"`
	}
	if err := json.Unmarshal([]byte(req.Body), &input); err != nil {
		return failure(http.StatusBadRequest, "Invalid request body"), nil
	}
	if input.FileName == "" || input.FileData == "" {
		return failure(http.StatusBadRequest, "fileName and fileData are required"), nil
	}

	data, err := base64.StdEncoding.DecodeString(input.FileData)
	if err != nil {
		return failure(http.StatusBadRequest, "fileData is not valid base64"), nil
	}

	client, err := h.clientFor(ctx, profileID)
	if err != nil {
		if errors.Is(err, drive.ErrNotConnected) {
			return failure(http.StatusBadRequest, msgNotConnected), nil
		}
		fmt.Printf("UploadFile token error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to refresh Google Drive access"), nil
	}

	rootID, err := h.accounts.AppFolderID(ctx, profileID)
	if err != nil {
		fmt.Printf("AppFolderID error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to resolve app folder"), nil
	}

	targetID := input.FolderID
	if targetID == "" {
		targetID, err = h.ensureAppFolder(ctx, profileID, client)
		if err != nil || targetID == "" {
			fmt.Printf("ensureAppFolder error: %v\n", err)
			return failure(http.StatusInternalServerError, "No target folder available"), nil
		}
		rootID = targetID
	}
	if targetID != rootID && !client.IsDescendant(ctx, targetID, rootID) {
		return failure(http.StatusForbidden, msgNotAllowed), nil
	}

	file, err := client.Upload(ctx, input.FileName, input.MimeType, data, targetID)
	if err != nil {
		fmt.Printf("Upload error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to upload file to Google Drive"), nil
	}

	return jsonResponse(http.StatusOK, struct {
		Success bool                  `json:"success"`
		File    *model.FileDescriptor `json:"file"`
	}{true, file}), nil
}

// DownloadFile handles GET /drive/files/{id}/download. The body is
// base64-encoded for the API Gateway binary path.
func (h *FileHandler) DownloadFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	fileID := req.PathParameters["id"]
	if fileID == "" {
		return failure(http.StatusBadRequest, "Missing file ID"), nil
	}

	client, err := h.clientFor(ctx, profileID)
	if err != nil {
		if errors.Is(err, drive.ErrNotConnected) {
			return failure(http.StatusBadRequest, msgNotConnected), nil
		}
		fmt.Printf("DownloadFile token error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to refresh Google Drive access"), nil
	}

	rootID, err := h.accounts.AppFolderID(ctx, profileID)
	if err != nil {
		fmt.Printf("AppFolderID error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to resolve app folder"), nil
	}
	if rootID != "" && fileID != rootID && !client.IsDescendant(ctx, fileID, rootID) {
		return failure(http.StatusForbidden, msgNotAllowed), nil
	}

	dl, err := client.Download(ctx, fileID)
	if err != nil {
		fmt.Printf("Download error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to download file from Google Drive"), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":        dl.ContentType,
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", dl.Filename),
		},
		Body:            base64.StdEncoding.EncodeToString(dl.Content),
		IsBase64Encoded: true,
	}, nil
}

// DeleteFile handles DELETE /drive/files/{id}.
func (h *FileHandler) DeleteFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	profileID, err := ResolveProfileID(req, h.jwtSecret, h.adminSecret)
	if err != nil {
		return failure(http.StatusUnauthorized, "Unauthorized"), nil
	}

	fileID := req.PathParameters["id"]
	if fileID == "" {
		return failure(http.StatusBadRequest, "Missing file ID"), nil
	}

	client, err := h.clientFor(ctx, profileID)
	if err != nil {
		if errors.Is(err, drive.ErrNotConnected) {
			return failure(http.StatusBadRequest, msgNotConnected), nil
		}
		fmt.Printf("DeleteFile token error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to refresh Google Drive access"), nil
	}

	rootID, err := h.accounts.AppFolderID(ctx, profileID)
	if err != nil {
		fmt.Printf("AppFolderID error: %v\n", err)
		return failure(http.StatusInternalServerError, "Failed to resolve app folder"), nil
	}
	if rootID != "" && fileID != rootID && !client.IsDescendant(ctx, fileID, rootID) {
		return failure(http.StatusForbidden, msgNotAllowed), nil
	}

	if err := client.Delete(ctx, fileID); err != nil {
		fmt.Printf("Delete error: %v\n", err)
		// Delete errors carry their own actionable message (e.g. missing
		// write scope on files the app did not create).
		return failure(http.StatusInternalServerError, err.Error()), nil
	}

	return jsonResponse(http.StatusOK, map[string]any{
		"success": true,
		"message": "File deleted successfully",
	}), nil
}
