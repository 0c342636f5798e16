// Package drive connects a workspace owner's Google Drive account: the OAuth
// authorization dance, transparent access-token refresh, file listing and
// export of Drive files as text.
package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/models"
)

// Scope is the read-only Drive scope requested at authorization.
const Scope = "https://www.googleapis.com/auth/drive.readonly"

// ErrTokenExchange marks an authorization code Google refused to exchange.
var ErrTokenExchange = errors.New("token exchange failed")

// DefaultEndpoint is the Drive v3 API base.
const DefaultEndpoint = "https://www.googleapis.com/drive/v3/"

// TokenStore persists one token row per owner.
type TokenStore interface {
	GetDriveToken(ctx context.Context, ownerID string) (*models.DriveToken, error)
	SaveDriveToken(ctx context.Context, t models.DriveToken) error
	DeleteDriveToken(ctx context.Context, ownerID string) error
}

// Config configures an Adapter. AuthURL, TokenURL and Endpoint override the
// Google defaults when set.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	Endpoint     string
	MaxBytes     int64
	Timeout      time.Duration
}

// Adapter talks to Google OAuth and the Drive API on behalf of owners.
type Adapter struct {
	oauth      *oauth2.Config
	store      TokenStore
	endpoint   string
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	refreshes  singleflight.Group
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets the client used for token and Drive calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithLogger sets the adapter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates an Adapter.
func New(cfg Config, store TokenStore, opts ...Option) *Adapter {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Adapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{Scope},
			Endpoint:     endpoint,
		},
		store:      store,
		endpoint:   cfg.Endpoint,
		maxBytes:   cfg.MaxBytes,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		now:        time.Now,
	}
	if a.endpoint == "" {
		a.endpoint = DefaultEndpoint
	}
	if a.maxBytes <= 0 {
		a.maxBytes = 10 << 20
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// clientCtx makes the oauth2 package use the adapter's HTTP client.
func (a *Adapter) clientCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// AuthURL returns the consent page URL. Offline access and forced consent
// make Google return a refresh token on every authorization.
func (a *Adapter) AuthURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and stores them for owner.
func (a *Adapter) Exchange(ctx context.Context, ownerID, code string) error {
	if code == "" {
		return fmt.Errorf("drive: %w: missing authorization code", apperr.ErrInvalidRequest)
	}
	tok, err := a.oauth.Exchange(a.clientCtx(ctx), code)
	if err != nil {
		return fmt.Errorf("drive: exchange code: %w: %w", ErrTokenExchange, err)
	}

	now := a.now().UTC()
	row := models.DriveToken{
		OwnerID:      ownerID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    a.expiry(tok),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if row.RefreshToken == "" {
		if prev, err := a.store.GetDriveToken(ctx, ownerID); err == nil {
			row.RefreshToken = prev.RefreshToken
		}
	}
	if err := a.store.SaveDriveToken(ctx, row); err != nil {
		return fmt.Errorf("drive: store token: %w", err)
	}
	a.logger.Info("drive: connected", slog.String("owner", ownerID))
	return nil
}

// Connected reports whether owner has a stored Drive token.
func (a *Adapter) Connected(ctx context.Context, ownerID string) (bool, error) {
	_, err := a.store.GetDriveToken(ctx, ownerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("drive: load token: %w", err)
	}
	return true, nil
}

// Disconnect forgets owner's Drive tokens.
func (a *Adapter) Disconnect(ctx context.Context, ownerID string) error {
	if err := a.store.DeleteDriveToken(ctx, ownerID); err != nil {
		return fmt.Errorf("drive: disconnect: %w", err)
	}
	return nil
}

// expiry converts an oauth2 token expiry into a stored timestamp. Providers
// that omit expires_in get a one hour lifetime.
func (a *Adapter) expiry(tok *oauth2.Token) time.Time {
	if tok.Expiry.IsZero() {
		return a.now().UTC().Add(time.Hour)
	}
	return tok.Expiry.UTC()
}
