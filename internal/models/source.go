package models

import "time"

// LocatorKind discriminates where a source's bytes live.
type LocatorKind string

// Locator kinds.
const (
	LocatorInternal LocatorKind = "internal"
	LocatorExternal LocatorKind = "external"
)

// Locator points at a source's content: a blob storage Path for internal
// locators, or an external URL. A locator is fixed when the source is created.
type Locator struct {
	Kind LocatorKind `json:"kind"`
	Path string      `json:"path,omitempty"`
	URL  string      `json:"url,omitempty"`
}

// InternalLocator returns a locator for a blob storage path.
func InternalLocator(path string) Locator {
	return Locator{Kind: LocatorInternal, Path: path}
}

// ExternalLocator returns a locator for an external URL.
func ExternalLocator(url string) Locator {
	return Locator{Kind: LocatorExternal, URL: url}
}

// Value returns the path or URL, whichever the kind carries.
func (l Locator) Value() string {
	if l.Kind == LocatorExternal {
		return l.URL
	}
	return l.Path
}

// Source is an uploaded or linked document tracked by the workspace.
type Source struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MimeType   string    `json:"type"`
	Size       int64     `json:"size"`
	Locator    Locator   `json:"locator"`
	ProjectID  *string   `json:"projectId,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}
