package fetcher

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/starford/atelier/internal/drive"
	"github.com/starford/atelier/internal/markdown"
)

type kind int

const (
	kindUnsupported kind = iota
	kindText
	kindMarkdown
	kindHTML
	kindPDF
	kindDriveDoc
	kindDriveSheet
	kindDriveSlides
)

func (k kind) native() bool {
	return k == kindDriveDoc || k == kindDriveSheet || k == kindDriveSlides
}

func (k kind) label() string {
	switch k {
	case kindMarkdown:
		return "Markdown"
	case kindHTML:
		return "HTML"
	case kindPDF:
		return "PDF"
	case kindDriveDoc:
		return "Google Doc"
	case kindDriveSheet:
		return "Google Sheet"
	case kindDriveSlides:
		return "Google Slides"
	default:
		return "text"
	}
}

// classify decides how a source is decoded from its mime type, falling back
// to the file extension.
func classify(name, mimeType string) kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case drive.MimeDocument:
		return kindDriveDoc
	case drive.MimeSpreadsheet:
		return kindDriveSheet
	case drive.MimePresentation:
		return kindDriveSlides
	case "application/pdf":
		return kindPDF
	case "text/markdown", "text/x-markdown":
		return kindMarkdown
	case "text/html":
		return kindHTML
	}
	if strings.HasPrefix(mt, "text/") {
		return kindText
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return kindPDF
	case ".md", ".markdown":
		return kindMarkdown
	case ".html", ".htm":
		return kindHTML
	case ".txt", ".csv":
		return kindText
	}
	return kindUnsupported
}

var driveIDRe = regexp.MustCompile(`[-\w]{25,}`)

// DriveFileID extracts the file id from a Google Drive or Docs URL.
func DriveFileID(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "drive.google.com" && host != "docs.google.com" {
		return "", false
	}
	if id := u.Query().Get("id"); driveIDRe.MatchString(id) {
		return driveIDRe.FindString(id), true
	}
	if id := driveIDRe.FindString(u.Path); id != "" {
		return id, true
	}
	return "", false
}

func markdownBody(text string) string {
	return markdown.Parse([]byte(text)).Body
}

func htmlToText(text string) (string, error) {
	return markdown.FromHTML(text)
}
