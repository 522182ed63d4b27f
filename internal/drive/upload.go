package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	gdrive "google.golang.org/api/drive/v3"

	"github.com/msa-world/geoinformatic-drive/internal/model"
)

const fallbackContentType = "application/octet-stream"

// uploadMetadata is the JSON metadata part of the multipart upload body.
type uploadMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents"`
}

// buildMultipartBody frames a multipart/related upload body by hand: a JSON
// metadata part followed by the raw payload, CRLF-delimited headers, closing
// boundary with trailing dashes. The Drive multipart endpoint expects exactly
// this framing.
func buildMultipartBody(boundary string, meta uploadMetadata, contentType string, data []byte) ([]byte, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal upload metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	buf.Write(metaJSON)
	buf.WriteString("\r\n--" + boundary + "\r\n")
	buf.WriteString("Content-Type: " + contentType + "\r\n\r\n")
	buf.Write(data)
	buf.WriteString("\r\n--" + boundary + "--")
	return buf.Bytes(), nil
}

// Upload creates a file under parentID via a multipart upload, then grants
// anyone-with-the-link read access. A failed permission grant is logged but
// does not fail the upload: the file exists, only its sharing is degraded.
func (c *Client) Upload(ctx context.Context, name, mimeType string, data []byte, parentID string) (*model.FileDescriptor, error) {
	contentType := mimeType
	if contentType == "" {
		contentType = fallbackContentType
	}

	meta := uploadMetadata{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}
	boundary := uuid.NewString()
	body, err := buildMultipartBody(boundary, meta, contentType, data)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"uploadType": {"multipart"},
		"fields":     {"id,name,mimeType,webViewLink,parents"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+boundary)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload failed (%d): %s", resp.StatusCode, respBody)
	}

	var created struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		MimeType    string   `json:"mimeType"`
		WebViewLink string   `json:"webViewLink"`
		Parents     []string `json:"parents"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("unable to decode upload response: %w", err)
	}

	if err := c.grantPublicRead(ctx, created.ID); err != nil {
		log.Printf("failed to set public permission on %s (file uploaded, sharing degraded): %v", created.ID, err)
	}

	return &model.FileDescriptor{
		ID:          created.ID,
		Name:        created.Name,
		MIMEType:    created.MimeType,
		WebViewLink: created.WebViewLink,
		Owner:       unknownOwner,
		Parents:     created.Parents,
	}, nil
}

// grantPublicRead grants "anyone with the link can read" on the file.
func (c *Client) grantPublicRead(ctx context.Context, fileID string) error {
	_, err := c.svc.Permissions.Create(fileID, &gdrive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	return err
}
