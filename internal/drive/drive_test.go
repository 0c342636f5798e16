package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/models"
)

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu    sync.Mutex
	rows  map[string]models.DriveToken
	saves int
}

func newMemTokens() *memTokens {
	return &memTokens{rows: make(map[string]models.DriveToken)}
}

func (m *memTokens) GetDriveToken(_ context.Context, owner string) (*models.DriveToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[owner]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &t, nil
}

func (m *memTokens) SaveDriveToken(_ context.Context, t models.DriveToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.OwnerID] = t
	m.saves++
	return nil
}

func (m *memTokens) DeleteDriveToken(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, owner)
	return nil
}

type fakeGoogle struct {
	srv          *httptest.Server
	tokenCalls   atomic.Int32
	refreshFails bool
	tokenHold    chan struct{}
	lastAuth     atomic.Value
	lastPath     atomic.Value
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		g.tokenCalls.Add(1)
		if g.tokenHold != nil {
			<-g.tokenHold
		}
		_ = r.ParseForm()
		if g.refreshFails {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		access := "fresh-access"
		if r.Form.Get("grant_type") == "authorization_code" {
			access = "code-access"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/drive/v3/files/", func(w http.ResponseWriter, r *http.Request) {
		g.lastAuth.Store(r.Header.Get("Authorization"))
		g.lastPath.Store(r.URL.Path + "?mimeType=" + r.URL.Query().Get("mimeType"))
		if r.Header.Get("Authorization") == "Bearer revoked" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":401,"message":"invalid credentials"}}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/export"):
			w.Header().Set("Content-Type", r.URL.Query().Get("mimeType"))
			w.Write([]byte("exported body"))
		default:
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF raw"))
		}
	})
	mux.HandleFunc("/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pageSize"); got != "100" {
			t.Errorf("pageSize = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"files":[{"id":"f1","name":"Plan","mimeType":"` + MimeDocument + `","webViewLink":"https://docs.google.com/document/d/f1"}]}`))
	})
	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func newTestAdapter(g *fakeGoogle, store TokenStore) *Adapter {
	return New(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/api/drive/callback",
		TokenURL:     g.srv.URL + "/token",
		Endpoint:     g.srv.URL + "/drive/v3/",
	}, store, WithHTTPClient(g.srv.Client()))
}

func TestExportFormat(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		native bool
	}{
		{MimeDocument, "text/plain", true},
		{MimeSpreadsheet, "text/csv", true},
		{MimePresentation, "text/plain", true},
		{"application/pdf", "", false},
	}
	for _, c := range cases {
		got, native := ExportFormat(c.in)
		if got != c.want || native != c.native {
			t.Errorf("ExportFormat(%q) = %q,%v want %q,%v", c.in, got, native, c.want, c.native)
		}
	}
}

func TestTokenState(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if s := TokenState(models.DriveToken{ExpiresAt: now.Add(time.Second)}, now); s != StateValid {
		t.Errorf("future expiry = %s", s)
	}
	if s := TokenState(models.DriveToken{ExpiresAt: now}, now); s != StateExpired {
		t.Errorf("expiry == now = %s", s)
	}
}

func TestExport_ExpiredTokenRefreshesOnceAndPersists(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	old := time.Now().Add(-time.Minute).UTC()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "stale", RefreshToken: "refresh-1", ExpiresAt: old}
	a := newTestAdapter(g, store)

	ex, err := a.Export(context.Background(), "u1", "doc-1", MimeDocument)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(ex.Content) != "exported body" || ex.MimeType != "text/plain" {
		t.Errorf("export = %q %q", ex.Content, ex.MimeType)
	}
	if n := g.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	if got := g.lastAuth.Load(); got != "Bearer fresh-access" {
		t.Errorf("authorization = %v", got)
	}

	row := store.rows["u1"]
	if row.AccessToken != "fresh-access" {
		t.Errorf("persisted access = %q", row.AccessToken)
	}
	if !row.ExpiresAt.After(time.Now()) {
		t.Errorf("persisted expiry %v not in the future", row.ExpiresAt)
	}
	if row.RefreshToken != "refresh-1" {
		t.Errorf("refresh token = %q, want preserved", row.RefreshToken)
	}
}

func TestExport_ValidTokenSkipsRefresh(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "good", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}
	a := newTestAdapter(g, store)

	ex, err := a.Export(context.Background(), "u1", "sheet-1", MimeSpreadsheet)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if ex.MimeType != "text/csv" {
		t.Errorf("mime = %q", ex.MimeType)
	}
	if got := g.lastPath.Load(); got != "/drive/v3/files/sheet-1/export?mimeType=text/csv" {
		t.Errorf("path = %v", got)
	}
	if n := g.tokenCalls.Load(); n != 0 {
		t.Errorf("token calls = %d, want 0", n)
	}
}

func TestExport_NonNativeDownloadsMedia(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)}
	a := newTestAdapter(g, store)

	ex, err := a.Export(context.Background(), "u1", "pdf-1", "application/pdf")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(ex.Content) != "%PDF raw" || ex.MimeType != "application/pdf" {
		t.Errorf("export = %q %q", ex.Content, ex.MimeType)
	}
}

func TestExport_RefreshFailureRequiresReconnect(t *testing.T) {
	g := newFakeGoogle(t)
	g.refreshFails = true
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "stale", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Hour)}
	a := newTestAdapter(g, store)

	_, err := a.Export(context.Background(), "u1", "doc", MimeDocument)
	if !errors.Is(err, apperr.ErrReconnectRequired) {
		t.Fatalf("expected ErrReconnectRequired, got %v", err)
	}
	if store.rows["u1"].AccessToken != "stale" {
		t.Error("token should not be overwritten on failed refresh")
	}
}

func TestExport_NoTokenRequiresReconnect(t *testing.T) {
	g := newFakeGoogle(t)
	a := newTestAdapter(g, newMemTokens())
	if _, err := a.Export(context.Background(), "nobody", "doc", MimeDocument); !errors.Is(err, apperr.ErrReconnectRequired) {
		t.Errorf("expected ErrReconnectRequired, got %v", err)
	}
}

func TestExport_RevokedTokenRequiresReconnect(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "revoked", ExpiresAt: time.Now().Add(time.Hour)}
	a := newTestAdapter(g, store)
	if _, err := a.Export(context.Background(), "u1", "doc", MimeDocument); !errors.Is(err, apperr.ErrReconnectRequired) {
		t.Errorf("expected ErrReconnectRequired, got %v", err)
	}
}

func TestExport_TooLargeIsUnsupported(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)}
	a := newTestAdapter(g, store)
	a.maxBytes = 4
	if _, err := a.Export(context.Background(), "u1", "doc", MimeDocument); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestExport_ConcurrentRefreshIsShared(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "stale", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Hour)}
	a := newTestAdapter(g, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Export(context.Background(), "u1", "doc", MimeDocument); err != nil {
				t.Errorf("Export: %v", err)
			}
		}()
	}
	wg.Wait()
	// Later callers see the persisted fresh token, so at most one refresh happens.
	if n := g.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
}

func TestAccessToken_SharedRefreshOutlivesCancelledCaller(t *testing.T) {
	g := newFakeGoogle(t)
	g.tokenHold = make(chan struct{})
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "stale", RefreshToken: "r", ExpiresAt: time.Now().Add(-time.Hour)}
	a := newTestAdapter(g, store)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.accessToken(cancelled, "u1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: expected context.Canceled, got %v", err)
	}
	close(g.tokenHold)

	tok, err := a.accessToken(context.Background(), "u1")
	if err != nil {
		t.Fatalf("accessToken: %v", err)
	}
	if tok != "fresh-access" {
		t.Errorf("token = %q, want fresh-access", tok)
	}
	if n := g.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
	row, _ := store.GetDriveToken(context.Background(), "u1")
	if row.AccessToken != "fresh-access" {
		t.Errorf("persisted access = %q", row.AccessToken)
	}
}

func TestExchange_StoresTokenAndKeepsRefresh(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "old", RefreshToken: "keep-me", ExpiresAt: time.Now()}
	a := newTestAdapter(g, store)

	if err := a.Exchange(context.Background(), "u1", "auth-code"); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	row := store.rows["u1"]
	if row.AccessToken != "code-access" || row.RefreshToken != "keep-me" {
		t.Errorf("row = %+v", row)
	}
	ok, err := a.Connected(context.Background(), "u1")
	if err != nil || !ok {
		t.Errorf("Connected = %v, %v", ok, err)
	}
	if err := a.Exchange(context.Background(), "u1", ""); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty code, got %v", err)
	}
}

func TestAuthURL(t *testing.T) {
	g := newFakeGoogle(t)
	a := newTestAdapter(g, newMemTokens())
	u, err := url.Parse(a.AuthURL("state-1"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("scope") != Scope || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("query = %v", q)
	}
	if q.Get("state") != "state-1" || q.Get("response_type") != "code" {
		t.Errorf("query = %v", q)
	}
}

func TestListFiles(t *testing.T) {
	g := newFakeGoogle(t)
	store := newMemTokens()
	store.rows["u1"] = models.DriveToken{OwnerID: "u1", AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)}
	a := newTestAdapter(g, store)

	files, err := a.ListFiles(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0].ID != "f1" || files[0].MimeType != MimeDocument {
		t.Errorf("files = %+v", files)
	}
}
