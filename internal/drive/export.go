package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/starford/atelier/internal/apperr"
)

// Google Workspace mime types.
const (
	MimeDocument     = "application/vnd.google-apps.document"
	MimeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimePresentation = "application/vnd.google-apps.presentation"
)

const listFields = "files(id,name,mimeType,size,modifiedTime,webViewLink,iconLink)"

// Export is the content of one Drive file.
type Export struct {
	Content  []byte
	MimeType string
}

// File is one entry of a Drive listing.
type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
	IconLink     string `json:"iconLink,omitempty"`
}

// ExportFormat maps a Drive mime type to the export format used for it.
// native is false for files that are downloaded as-is.
func ExportFormat(mimeType string) (exportMime string, native bool) {
	switch mimeType {
	case MimeDocument, MimePresentation:
		return "text/plain", true
	case MimeSpreadsheet:
		return "text/csv", true
	default:
		return "", false
	}
}

// IsNative reports whether mimeType is a Google Workspace document type.
func IsNative(mimeType string) bool {
	_, native := ExportFormat(mimeType)
	return native
}

func (a *Adapter) service(ctx context.Context, ownerID string) (*gdrive.Service, error) {
	accessToken, err := a.accessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(a.clientCtx(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	client.Timeout = a.httpClient.Timeout
	srv, err := gdrive.NewService(ctx, option.WithHTTPClient(client), option.WithEndpoint(a.endpoint))
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return srv, nil
}

// Export returns the content of fileID. Workspace documents are exported as
// text or CSV; anything else is downloaded raw and reported with its own
// mime type.
func (a *Adapter) Export(ctx context.Context, ownerID, fileID, mimeType string) (Export, error) {
	if fileID == "" {
		return Export{}, fmt.Errorf("drive: %w: file id is required", apperr.ErrInvalidRequest)
	}
	srv, err := a.service(ctx, ownerID)
	if err != nil {
		return Export{}, err
	}

	var (
		resp     *http.Response
		exported = mimeType
	)
	if exportMime, native := ExportFormat(mimeType); native {
		exported = exportMime
		resp, err = srv.Files.Export(fileID, exportMime).Context(ctx).Download()
	} else {
		resp, err = srv.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return Export{}, apiErr("export "+fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBytes+1))
	if err != nil {
		return Export{}, fmt.Errorf("drive: read %s: %w", fileID, err)
	}
	if int64(len(data)) > a.maxBytes {
		return Export{}, fmt.Errorf("drive: %s exceeds %d bytes: %w", fileID, a.maxBytes, apperr.ErrUnsupported)
	}
	if exported == "" {
		exported = resp.Header.Get("Content-Type")
	}
	return Export{Content: data, MimeType: exported}, nil
}

// ListFiles returns up to 100 files visible to owner.
func (a *Adapter) ListFiles(ctx context.Context, ownerID string) ([]File, error) {
	srv, err := a.service(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	list, err := srv.Files.List().PageSize(100).Fields(listFields).Context(ctx).Do()
	if err != nil {
		return nil, apiErr("list files", err)
	}
	out := make([]File, 0, len(list.Files))
	for _, f := range list.Files {
		out = append(out, File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			Size:         f.Size,
			ModifiedTime: f.ModifiedTime,
			WebViewLink:  f.WebViewLink,
			IconLink:     f.IconLink,
		})
	}
	return out, nil
}

// apiErr maps Drive API failures. A rejected bearer token means the grant
// was revoked and the owner must reconnect.
func apiErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("drive: %s: %w", op, apperr.ErrReconnectRequired)
		case http.StatusNotFound:
			return fmt.Errorf("drive: %s: %w", op, apperr.ErrNotFound)
		}
	}
	return fmt.Errorf("drive: %s: %w", op, err)
}
