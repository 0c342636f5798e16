package api

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/starford/atelier/internal/drive"
)

// Callback failure codes posted to the opener window.
const (
	callbackMissingCode    = "missing_code"
	callbackExchangeFailed = "token_exchange_failed"
	callbackDBError        = "db_error"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Google Drive</title></head>
<body>
<p>{{if eq .Status "success"}}Google Drive connected. You can close this window.{{else}}Google Drive connection failed.{{end}}</p>
<script>
(function () {
  var msg = {type: "drive-auth", status: {{.Status}}{{if .Error}}, error: {{.Error}}{{end}}};
  if (window.opener) {
    window.opener.postMessage(msg, "*");
  }
  window.close();
})();
</script>
</body>
</html>
`))

type callbackResult struct {
	Status string
	Error  string
}

func (h *Handler) requireDrive(w http.ResponseWriter) bool {
	if h.drive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("google drive is not configured"))
		return false
	}
	return true
}

// DriveAuth handles POST /api/drive/auth and returns the consent URL. The
// owner id travels in the OAuth state so the callback can attribute tokens.
func (h *Handler) DriveAuth(w http.ResponseWriter, r *http.Request) {
	if !h.requireDrive(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": h.drive.AuthURL(ownerFrom(r.Context()))})
}

// DriveCallback handles GET /api/drive/callback. It always answers with a
// small page that reports the outcome to the window that opened it.
func (h *Handler) DriveCallback(w http.ResponseWriter, r *http.Request) {
	if !h.requireDrive(w) {
		return
	}
	q := r.URL.Query()
	owner := q.Get("state")
	if owner == "" {
		owner = DefaultOwner
	}

	res := callbackResult{Status: "success"}
	switch {
	case q.Get("error") != "":
		res = callbackResult{Status: "error", Error: q.Get("error")}
	case q.Get("code") == "":
		res = callbackResult{Status: "error", Error: callbackMissingCode}
	default:
		if err := h.drive.Exchange(r.Context(), owner, q.Get("code")); err != nil {
			code := callbackDBError
			if errors.Is(err, drive.ErrTokenExchange) {
				code = callbackExchangeFailed
			}
			slog.Error("api: drive callback failed",
				slog.String("owner", owner),
				slog.String("error", err.Error()))
			res = callbackResult{Status: "error", Error: code}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPage.Execute(w, res); err != nil {
		slog.Error("api: render drive callback", slog.String("error", err.Error()))
	}
}

// DriveStatus handles GET /api/drive/status.
func (h *Handler) DriveStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireDrive(w) {
		return
	}
	ok, err := h.drive.Connected(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, "drive status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": ok})
}

// DriveFiles handles GET /api/drive/files.
func (h *Handler) DriveFiles(w http.ResponseWriter, r *http.Request) {
	if !h.requireDrive(w) {
		return
	}
	files, err := h.drive.ListFiles(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, "drive files", err)
		return
	}
	if files == nil {
		files = []drive.File{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// DriveDisconnect handles DELETE /api/drive/connection.
func (h *Handler) DriveDisconnect(w http.ResponseWriter, r *http.Request) {
	if !h.requireDrive(w) {
		return
	}
	if err := h.drive.Disconnect(r.Context(), ownerFrom(r.Context())); err != nil {
		writeError(w, "drive disconnect", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
