package model

import "time"

// DriveAccount is the per-user Google Drive credential record stored in the
// accounts table. The refresh token is stored KMS-encrypted; accounts written
// before encryption was introduced have no item here and are served from the
// legacy plaintext attribute on the profile record instead.
type DriveAccount struct {
	ProfileID             string    `json:"profile_id" dynamodbav:"profile_id"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Profile is the subset of the user profile record this service reads and
// writes. The profile itself is owned by the surrounding application; only
// the Drive-related attributes are touched here.
type Profile struct {
	ProfileID          string    `json:"profile_id" dynamodbav:"profile_id"`
	GoogleRefreshToken string    `json:"google_refresh_token,omitempty" dynamodbav:"google_refresh_token,omitempty"` // legacy plaintext, read-only fallback
	GoogleAccessToken  string    `json:"google_access_token,omitempty" dynamodbav:"google_access_token,omitempty"`   // cached, never authoritative
	DriveFolderID      string    `json:"drive_folder_id,omitempty" dynamodbav:"drive_folder_id,omitempty"`
	DriveConnectedAt   time.Time `json:"drive_connected_at,omitzero" dynamodbav:"drive_connected_at,omitempty"`
}

// FileDescriptor is the normalized wire shape for a Drive file. Size is a
// string because native Google document types carry no size at all and the
// frontend treats it as opaque.
type FileDescriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MIMEType     string   `json:"mimeType"`
	Size         string   `json:"size,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	WebViewLink  string   `json:"webViewLink,omitempty"`
	Owner        string   `json:"owner"`
	Parents      []string `json:"parents,omitempty"`
}
