package drive

import "errors"

// ErrNotConnected is returned when a user has no refresh token on file.
var ErrNotConnected = errors.New("user not connected to Google Drive")
