package drive

import (
	"context"
	"fmt"

	gdrive "google.golang.org/api/drive/v3"
)

// EnsureAppFolder finds or creates the app-root folder in the connected
// account and returns its id. Find-or-create is not atomic: two concurrent
// first operations for the same user can each create a folder, and the
// second persisted id simply wins. Both folders are functional.
func (c *Client) EnsureAppFolder(ctx context.Context) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false and 'me' in owners", AppFolderName, folderMIMEType)
	r, err := c.svc.Files.List().
		Q(q).
		Fields("files(id)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to search for app folder: %w", err)
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder, err := c.svc.Files.Create(&gdrive.File{
		Name:     AppFolderName,
		MimeType: folderMIMEType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create app folder: %w", err)
	}
	return folder.Id, nil
}
