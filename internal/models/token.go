package models

import "time"

// DriveToken holds one owner's Google Drive OAuth credentials.
type DriveToken struct {
	OwnerID      string    `json:"ownerId"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
