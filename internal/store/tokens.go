package store

import (
	"context"
	"fmt"

	"github.com/starford/atelier/internal/models"
)

// GetDriveToken returns the Drive token row owned by ownerID.
func (db *DB) GetDriveToken(ctx context.Context, ownerID string) (*models.DriveToken, error) {
	var t models.DriveToken
	err := db.conn.QueryRowContext(ctx, `
		SELECT owner_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM drive_tokens WHERE owner_id = ?
	`, ownerID).Scan(&t.OwnerID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err, "get drive token")
	}
	return &t, nil
}

// SaveDriveToken upserts the token row for t.OwnerID. created_at is kept
// from the first insert.
func (db *DB) SaveDriveToken(ctx context.Context, t models.DriveToken) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO drive_tokens (owner_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at    = excluded.expires_at,
			updated_at    = excluded.updated_at
	`, t.OwnerID, t.AccessToken, t.RefreshToken, t.ExpiresAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save drive token: %w", err)
	}
	return nil
}

// DeleteDriveToken forgets the owner's Drive connection.
func (db *DB) DeleteDriveToken(ctx context.Context, ownerID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM drive_tokens WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("store: delete drive token: %w", err)
	}
	return nil
}
