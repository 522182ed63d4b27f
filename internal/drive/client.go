// Package drive implements the folder-scoped Google Drive layer: containment
// validation, app-root provisioning, listing, multipart upload, download and
// export, and deletion. All calls act with a single user's access token.
package drive

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	// AppFolderName is the well-known root folder this app owns in the
	// user's Drive. Every file operation is contained to its subtree.
	AppFolderName = "GEOINFORMATIC"

	folderMIMEType = "application/vnd.google-apps.folder"

	defaultUploadEndpoint = "https://www.googleapis.com/upload/drive/v3/files"
)

// ClientFactory creates a per-request Client bound to a user's access token.
type ClientFactory func(ctx context.Context, accessToken string) (*Client, error)

// Client wraps the Drive API for a single authenticated user. The raw HTTP
// client is kept alongside the generated service for the multipart upload
// path, which frames its own request body.
type Client struct {
	svc         *gdrive.Service
	hc          *http.Client
	apiEndpoint string
	uploadURL   string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIEndpoint overrides the Drive API base URL. Used by tests.
func WithAPIEndpoint(url string) Option {
	return func(c *Client) { c.apiEndpoint = url }
}

// WithUploadEndpoint overrides the multipart upload URL. Used by tests.
func WithUploadEndpoint(url string) Option {
	return func(c *Client) { c.uploadURL = url }
}

// NewClient creates a Client authenticated with the given access token.
func NewClient(ctx context.Context, accessToken string, opts ...Option) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)

	c := &Client{hc: hc, uploadURL: defaultUploadEndpoint}
	for _, opt := range opts {
		opt(c)
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.apiEndpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(c.apiEndpoint))
	}

	svc, err := gdrive.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	c.svc = svc
	return c, nil
}
