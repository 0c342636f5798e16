package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/models"
)

// State of a stored token.
type State string

// Token states.
const (
	StateValid   State = "valid"
	StateExpired State = "expired"
)

// TokenState classifies tok at now. A token whose expiry is at or before now
// is expired.
func TokenState(tok models.DriveToken, now time.Time) State {
	if tok.ExpiresAt.After(now) {
		return StateValid
	}
	return StateExpired
}

// accessToken returns a usable access token for owner, refreshing and
// persisting it first when the stored one has expired. Concurrent callers for
// the same owner share a single load/refresh/persist sequence. That sequence
// ignores the caller's cancellation and is bounded by the HTTP client timeout.
func (a *Adapter) accessToken(ctx context.Context, ownerID string) (string, error) {
	ch := a.refreshes.DoChan(ownerID, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if t := a.httpClient.Timeout; t > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, t)
			defer cancel()
		}
		return a.loadOrRefresh(shared, ownerID)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("drive: access token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (a *Adapter) loadOrRefresh(ctx context.Context, ownerID string) (string, error) {
	row, err := a.store.GetDriveToken(ctx, ownerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("drive: no connection for owner: %w", apperr.ErrReconnectRequired)
	}
	if err != nil {
		return "", fmt.Errorf("drive: load token: %w", err)
	}

	now := a.now()
	if TokenState(*row, now) == StateValid {
		return row.AccessToken, nil
	}
	if row.RefreshToken == "" {
		return "", fmt.Errorf("drive: token expired without refresh token: %w", apperr.ErrReconnectRequired)
	}

	a.logger.Info("drive: refreshing access token", slog.String("owner", ownerID))
	src := a.oauth.TokenSource(a.clientCtx(ctx), &oauth2.Token{RefreshToken: row.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		a.logger.Warn("drive: refresh failed", slog.String("owner", ownerID), slog.String("error", err.Error()))
		return "", fmt.Errorf("drive: refresh token: %w", apperr.ErrReconnectRequired)
	}

	row.AccessToken = tok.AccessToken
	row.ExpiresAt = a.expiry(tok)
	row.UpdatedAt = now.UTC()
	if tok.RefreshToken != "" {
		row.RefreshToken = tok.RefreshToken
	}
	if err := a.store.SaveDriveToken(ctx, *row); err != nil {
		return "", fmt.Errorf("drive: persist refreshed token: %w", err)
	}
	return row.AccessToken, nil
}
