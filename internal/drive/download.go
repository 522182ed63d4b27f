package drive

import (
	"context"
	"fmt"
	"io"
	"strings"
)

const nativeDocPrefix = "application/vnd.google-apps."

// exportMIMETypes maps native Google document types to the format they are
// exported as. Anything else under the vendor prefix falls back to PDF.
var exportMIMETypes = map[string]string{
	"application/vnd.google-apps.spreadsheet":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.google-apps.presentation": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.google-apps.document":     "application/pdf",
}

// exportMIMEFor returns the export format for a native Google document type,
// or false when the file is a regular binary and should be downloaded as-is.
func exportMIMEFor(mimeType string) (string, bool) {
	if !strings.HasPrefix(mimeType, nativeDocPrefix) {
		return "", false
	}
	if target, ok := exportMIMETypes[mimeType]; ok {
		return target, true
	}
	return "application/pdf", true
}

// Download is a fetched file ready to stream back to the caller.
type Download struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Download fetches a file's bytes. Native Google document types are exported
// to an Office/PDF format; everything else is a raw media download.
func (c *Client) Download(ctx context.Context, fileID string) (*Download, error) {
	f, err := c.svc.Files.Get(fileID).
		SupportsAllDrives(true).
		Fields("id, name, mimeType").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get file metadata: %w", err)
	}

	if exportMIME, ok := exportMIMEFor(f.MimeType); ok {
		resp, err := c.svc.Files.Export(fileID, exportMIME).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("unable to export file: %w", err)
		}
		defer resp.Body.Close()

		content, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("unable to read export response: %w", err)
		}
		return &Download{Content: content, ContentType: exportMIME, Filename: f.Name}, nil
	}

	resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download file: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read file content: %w", err)
	}

	contentType := f.MimeType
	if contentType == "" {
		contentType = fallbackContentType
	}
	return &Download{Content: content, ContentType: contentType, Filename: f.Name}, nil
}
