package drive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/msa-world/geoinformatic-drive/internal/model"
)

const (
	listFields = "files(id, name, mimeType, webViewLink, modifiedTime, size, owners, parents)"

	// listPageSize caps the listing to a single page. The app folder holds
	// a handful of application documents per user; paging has never been
	// needed.
	listPageSize = 100

	unknownOwner = "Unknown"
)

// escapeQueryTerm escapes a user-supplied string for interpolation into a
// Drive query expression. Backslashes first, then single quotes, per the
// Drive query grammar.
func escapeQueryTerm(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// ListFiles lists non-trashed files under parentID, optionally filtered by a
// name search, normalized into the wire descriptor shape. Only the first
// page is fetched.
func (c *Client) ListFiles(ctx context.Context, parentID, search string) ([]model.FileDescriptor, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", parentID)
	if search != "" {
		q += fmt.Sprintf(" and name contains '%s'", escapeQueryTerm(search))
	}

	r, err := c.svc.Files.List().
		Q(q).
		PageSize(listPageSize).
		Fields(googleapi.Field(listFields)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list files: %w", err)
	}

	files := make([]model.FileDescriptor, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, toDescriptor(f))
	}
	return files, nil
}

func toDescriptor(f *gdrive.File) model.FileDescriptor {
	owner := unknownOwner
	if len(f.Owners) > 0 && f.Owners[0].DisplayName != "" {
		owner = f.Owners[0].DisplayName
	}

	// Native Google document types carry no size; leave it empty rather
	// than reporting 0.
	size := ""
	if f.Size > 0 {
		size = strconv.FormatInt(f.Size, 10)
	}

	return model.FileDescriptor{
		ID:           f.Id,
		Name:         f.Name,
		MIMEType:     f.MimeType,
		Size:         size,
		ModifiedTime: f.ModifiedTime,
		WebViewLink:  f.WebViewLink,
		Owner:        owner,
		Parents:      f.Parents,
	}
}
