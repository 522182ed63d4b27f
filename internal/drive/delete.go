package drive

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Delete permanently deletes a file. A 403 from Drive gets an actionable
// message: with the drive.file scope the app cannot delete files it did not
// create.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	err := c.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do()
	if err == nil {
		return nil
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == 403 {
		return fmt.Errorf("insufficient permissions to delete this file: the app may lack write access to files it did not create")
	}
	return fmt.Errorf("unable to delete file: %w", err)
}
