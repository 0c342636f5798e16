// Package fetcher resolves a source record to plain text for the assistant.
// It dispatches on the source's locator: internal blobs are downloaded and
// decoded, Drive URLs are exported through the Drive adapter.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/drive"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/pdftext"
)

// DefaultMaxInternalBytes is the size ceiling for internally stored files.
const DefaultMaxInternalBytes int64 = 5 << 20

// Status of a fetch.
type Status string

// Fetch statuses. Only StatusFetched carries text.
const (
	StatusFetched Status = "fetched"
	StatusSkipped Status = "skipped"
	StatusEmpty   Status = "empty"
)

// Result is the outcome of a fetch that did not fail.
type Result struct {
	Status    Status
	Text      string
	Label     string
	WordCount int
	Reason    string
}

// Options bound a single fetch.
type Options struct {
	// MaxChars truncates the text to its first MaxChars runes. Zero keeps
	// everything.
	MaxChars int
}

// Downloader reads internally stored blobs.
type Downloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Exporter exports Drive files.
type Exporter interface {
	Export(ctx context.Context, ownerID, fileID, mimeType string) (drive.Export, error)
}

// Fetcher resolves sources to text.
type Fetcher struct {
	blobs    Downloader
	drive    Exporter
	pdf      pdftext.DocumentExtractor
	maxBytes int64
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithDrive enables Drive-linked sources. Without it they are skipped.
func WithDrive(e Exporter) Option {
	return func(f *Fetcher) { f.drive = e }
}

// WithMaxInternalBytes overrides DefaultMaxInternalBytes.
func WithMaxInternalBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// New creates a Fetcher.
func New(blobs Downloader, pdf pdftext.DocumentExtractor, opts ...Option) *Fetcher {
	f := &Fetcher{blobs: blobs, pdf: pdf, maxBytes: DefaultMaxInternalBytes}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch resolves src to text. Unsupported and oversized sources come back as
// StatusSkipped with a nil error; storage, network and Drive failures are
// returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, ownerID string, src models.Source, opts Options) (Result, error) {
	var (
		res Result
		err error
	)
	switch src.Locator.Kind {
	case models.LocatorInternal:
		res, err = f.fetchInternal(ctx, src)
	case models.LocatorExternal:
		res, err = f.fetchExternal(ctx, ownerID, src)
	default:
		res = skipped(src, "unknown locator kind")
	}
	if err != nil {
		return Result{}, err
	}
	if res.Status == StatusFetched {
		res.Text = truncate(res.Text, opts.MaxChars)
	}
	return res, nil
}

func (f *Fetcher) fetchInternal(ctx context.Context, src models.Source) (Result, error) {
	k := classify(src.Name, src.MimeType)
	if k == kindUnsupported || k.native() {
		return skipped(src, "unsupported type "+src.MimeType), nil
	}
	if src.Size > f.maxBytes {
		return skipped(src, fmt.Sprintf("larger than %d bytes", f.maxBytes)), nil
	}

	rc, err := f.blobs.Download(ctx, src.Locator.Path)
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: download %s: %w", src.ID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, f.maxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: read %s: %w", src.ID, err)
	}
	if int64(len(data)) > f.maxBytes {
		return skipped(src, fmt.Sprintf("larger than %d bytes", f.maxBytes)), nil
	}
	return f.decode(src, k, data)
}

func (f *Fetcher) fetchExternal(ctx context.Context, ownerID string, src models.Source) (Result, error) {
	fileID, ok := DriveFileID(src.Locator.URL)
	if !ok {
		return skipped(src, "not a Google Drive link"), nil
	}
	if f.drive == nil {
		return skipped(src, "google drive is not configured"), nil
	}
	k := classify(src.Name, src.MimeType)
	if k == kindUnsupported {
		return skipped(src, "unsupported type "+src.MimeType), nil
	}

	ex, err := f.drive.Export(ctx, ownerID, fileID, src.MimeType)
	if errors.Is(err, apperr.ErrUnsupported) {
		return skipped(src, err.Error()), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: drive export %s: %w", src.ID, err)
	}
	return f.decode(src, k, ex.Content)
}

func (f *Fetcher) decode(src models.Source, k kind, data []byte) (Result, error) {
	if k == kindPDF {
		return f.decodePDF(src, data)
	}

	text := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	switch k {
	case kindMarkdown:
		text = markdownBody(text)
	case kindHTML:
		md, err := htmlToText(text)
		if err != nil {
			return Result{}, fmt.Errorf("fetcher: convert html %s: %w", src.ID, err)
		}
		text = md
	}

	label := fmt.Sprintf("%s (%s)", src.Name, k.label())
	if strings.TrimSpace(text) == "" {
		return Result{Status: StatusEmpty, Label: label, Reason: "no text content"}, nil
	}
	return Result{
		Status:    StatusFetched,
		Text:      text,
		Label:     label,
		WordCount: pdftext.CountWords(text),
	}, nil
}

func (f *Fetcher) decodePDF(src models.Source, data []byte) (Result, error) {
	ex, err := f.pdf.Extract(data)
	if err != nil {
		return Result{}, fmt.Errorf("fetcher: extract pdf %s: %w", src.ID, err)
	}
	switch ex.Status {
	case pdftext.StatusEmpty:
		return Result{
			Status: StatusEmpty,
			Label:  fmt.Sprintf("%s (PDF, no extractable text)", src.Name),
			Reason: "no extractable text; the PDF may need OCR",
		}, nil
	case pdftext.StatusPartial:
		return Result{
			Status:    StatusFetched,
			Text:      ex.Text,
			Label:     fmt.Sprintf("%s (PDF, partially readable, ~%d words)", src.Name, ex.WordCount),
			WordCount: ex.WordCount,
		}, nil
	default:
		return Result{
			Status:    StatusFetched,
			Text:      ex.Text,
			Label:     fmt.Sprintf("%s (PDF, ~%d words)", src.Name, ex.WordCount),
			WordCount: ex.WordCount,
		}, nil
	}
}

func skipped(src models.Source, reason string) Result {
	return Result{Status: StatusSkipped, Label: src.Name, Reason: reason}
}

// truncate keeps the first maxChars runes of s.
func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
