package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/drive"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/pdftext"
)

type memBlobs struct {
	data      map[string][]byte
	downloads int
}

func (m *memBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.downloads++
	b, ok := m.data[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type fakeDrive struct {
	calls  []string
	export drive.Export
	err    error
}

func (d *fakeDrive) Export(_ context.Context, owner, fileID, mimeType string) (drive.Export, error) {
	d.calls = append(d.calls, owner+"/"+fileID+"/"+mimeType)
	return d.export, d.err
}

const driveURL = "https://docs.google.com/document/d/1AbCdEfGhIjKlMnOpQrStUvWxYz_0123/edit"

func internalSource(name, mime string, data []byte) models.Source {
	return models.Source{ID: "src-" + name, Name: name, MimeType: mime, Size: int64(len(data)), Locator: models.InternalLocator("k/" + name)}
}

func newTestFetcher(blobs map[string][]byte, opts ...Option) (*Fetcher, *memBlobs) {
	m := &memBlobs{data: blobs}
	return New(m, pdftext.Heuristic{}, opts...), m
}

func TestFetch_TextRoundTripIsExact(t *testing.T) {
	content := "line one\nline two, with ünïcode ✓\n"
	src := internalSource("notes.txt", "text/plain", []byte(content))
	f, _ := newTestFetcher(map[string][]byte{"k/notes.txt": []byte(content)})

	res, err := f.Fetch(context.Background(), "u", src, Options{MaxChars: 8000})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Status != StatusFetched || res.Text != content {
		t.Errorf("result = %+v", res)
	}
	if res.Label != "notes.txt (text)" {
		t.Errorf("label = %q", res.Label)
	}
}

func TestFetch_TruncatesByRunes(t *testing.T) {
	content := "ééééé"
	src := internalSource("e.txt", "text/plain", []byte(content))
	f, _ := newTestFetcher(map[string][]byte{"k/e.txt": []byte(content)})

	res, _ := f.Fetch(context.Background(), "u", src, Options{MaxChars: 3})
	if res.Text != "ééé" {
		t.Errorf("text = %q, want %q", res.Text, "ééé")
	}
	again, _ := f.Fetch(context.Background(), "u", src, Options{MaxChars: 3})
	if again.Text != res.Text {
		t.Error("truncation is not deterministic")
	}
}

func TestFetch_OversizedIsSkippedWithoutDownload(t *testing.T) {
	src := internalSource("big.txt", "text/plain", nil)
	src.Size = DefaultMaxInternalBytes + 1
	f, blobs := newTestFetcher(map[string][]byte{"k/big.txt": []byte("x")})

	res, err := f.Fetch(context.Background(), "u", src, Options{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Status != StatusSkipped {
		t.Errorf("status = %q, want skipped", res.Status)
	}
	if blobs.downloads != 0 {
		t.Errorf("downloads = %d, want 0", blobs.downloads)
	}
}

func TestFetch_UnderreportedSizeIsSkipped(t *testing.T) {
	src := internalSource("lies.txt", "text/plain", []byte("x"))
	f, _ := newTestFetcher(map[string][]byte{"k/lies.txt": []byte("0123456789")}, WithMaxInternalBytes(5))
	res, _ := f.Fetch(context.Background(), "u", src, Options{})
	if res.Status != StatusSkipped {
		t.Errorf("status = %q, want skipped", res.Status)
	}
}

func TestFetch_UnsupportedTypeIsSkipped(t *testing.T) {
	src := internalSource("photo.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	f, blobs := newTestFetcher(map[string][]byte{"k/photo.png": {0x89}})
	res, err := f.Fetch(context.Background(), "u", src, Options{})
	if err != nil || res.Status != StatusSkipped {
		t.Errorf("result = %+v, err = %v", res, err)
	}
	if blobs.downloads != 0 {
		t.Error("unsupported source should not be downloaded")
	}
}

func TestFetch_MissingBlobIsError(t *testing.T) {
	src := internalSource("gone.txt", "text/plain", []byte("x"))
	f, _ := newTestFetcher(map[string][]byte{})
	if _, err := f.Fetch(context.Background(), "u", src, Options{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetch_PDFLabels(t *testing.T) {
	partial := []byte("%PDF-1.4\nBT (Quarterly) Tj (report) Tj ET")
	var sb strings.Builder
	sb.WriteString("BT ")
	for i := 0; i < 60; i++ {
		sb.WriteString("(word) Tj ")
	}
	sb.WriteString("ET")
	full := []byte(sb.String())
	empty := []byte("%PDF-1.4 stream \x00\x01 endstream")

	f, _ := newTestFetcher(map[string][]byte{
		"k/partial.pdf": partial,
		"k/full.pdf":    full,
		"k/empty.pdf":   empty,
	})
	ctx := context.Background()

	res, _ := f.Fetch(ctx, "u", internalSource("partial.pdf", "application/pdf", partial), Options{})
	if res.Status != StatusFetched || res.Label != "partial.pdf (PDF, partially readable, ~2 words)" {
		t.Errorf("partial = %+v", res)
	}
	res, _ = f.Fetch(ctx, "u", internalSource("full.pdf", "", full), Options{})
	if res.Status != StatusFetched || res.Label != "full.pdf (PDF, ~60 words)" {
		t.Errorf("full = %+v", res)
	}
	res, _ = f.Fetch(ctx, "u", internalSource("empty.pdf", "application/pdf", empty), Options{})
	if res.Status != StatusEmpty || res.Text != "" {
		t.Errorf("empty = %+v", res)
	}
}

func TestFetch_MarkdownDropsFrontmatter(t *testing.T) {
	content := []byte("---\ntitle: Plan\n---\n# Plan\nShip it.\n")
	f, _ := newTestFetcher(map[string][]byte{"k/plan.md": content})
	res, _ := f.Fetch(context.Background(), "u", internalSource("plan.md", "", content), Options{})
	if res.Text != "# Plan\nShip it.\n" || res.Label != "plan.md (Markdown)" {
		t.Errorf("result = %+v", res)
	}
}

func TestFetch_HTMLConvertedToMarkdown(t *testing.T) {
	content := []byte("<html><body><h2>Findings</h2><p>It <em>works</em>.</p></body></html>")
	f, _ := newTestFetcher(map[string][]byte{"k/page.html": content})
	res, err := f.Fetch(context.Background(), "u", internalSource("page.html", "text/html", content), Options{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(res.Text, "## Findings") || strings.Contains(res.Text, "<p>") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestFetch_BlankTextIsEmpty(t *testing.T) {
	content := []byte(" \n\t ")
	f, _ := newTestFetcher(map[string][]byte{"k/blank.txt": content})
	res, _ := f.Fetch(context.Background(), "u", internalSource("blank.txt", "text/plain", content), Options{})
	if res.Status != StatusEmpty {
		t.Errorf("status = %q, want empty", res.Status)
	}
}

func TestFetch_DriveDelegates(t *testing.T) {
	d := &fakeDrive{export: drive.Export{Content: []byte("doc text"), MimeType: "text/plain"}}
	f, _ := newTestFetcher(nil, WithDrive(d))
	src := models.Source{ID: "d1", Name: "plan", MimeType: drive.MimeDocument, Locator: models.ExternalLocator(driveURL)}

	res, err := f.Fetch(context.Background(), "owner-1", src, Options{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Text != "doc text" || res.Label != "plan (Google Doc)" {
		t.Errorf("result = %+v", res)
	}
	want := "owner-1/1AbCdEfGhIjKlMnOpQrStUvWxYz_0123/" + drive.MimeDocument
	if len(d.calls) != 1 || d.calls[0] != want {
		t.Errorf("calls = %v", d.calls)
	}
}

func TestFetch_DriveReconnectBubbles(t *testing.T) {
	d := &fakeDrive{err: apperr.ErrReconnectRequired}
	f, _ := newTestFetcher(nil, WithDrive(d))
	src := models.Source{ID: "d1", Name: "plan", MimeType: drive.MimeDocument, Locator: models.ExternalLocator(driveURL)}
	if _, err := f.Fetch(context.Background(), "u", src, Options{}); !errors.Is(err, apperr.ErrReconnectRequired) {
		t.Errorf("expected ErrReconnectRequired, got %v", err)
	}
}

func TestFetch_NonDriveURLIsSkipped(t *testing.T) {
	d := &fakeDrive{}
	f, _ := newTestFetcher(nil, WithDrive(d))
	src := models.Source{ID: "x", Name: "blog", MimeType: "text/html", Locator: models.ExternalLocator("https://example.com/post")}
	res, err := f.Fetch(context.Background(), "u", src, Options{})
	if err != nil || res.Status != StatusSkipped || len(d.calls) != 0 {
		t.Errorf("result = %+v, err = %v, calls = %v", res, err, d.calls)
	}
}

func TestDriveFileID(t *testing.T) {
	cases := map[string]string{
		driveURL: "1AbCdEfGhIjKlMnOpQrStUvWxYz_0123",
		"https://drive.google.com/open?id=1AbCdEfGhIjKlMnOpQrStUvWxYz_0123": "1AbCdEfGhIjKlMnOpQrStUvWxYz_0123",
		"https://drive.google.com/file/d/short/view":                      "",
		"https://evil.example.com/d/1AbCdEfGhIjKlMnOpQrStUvWxYz_0123":     "",
	}
	for in, want := range cases {
		got, ok := DriveFileID(in)
		if got != want || ok != (want != "") {
			t.Errorf("DriveFileID(%q) = %q,%v want %q", in, got, ok, want)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name, mime string
		want       kind
	}{
		{"a.txt", "text/plain; charset=utf-8", kindText},
		{"a.csv", "", kindText},
		{"a.md", "application/octet-stream", kindMarkdown},
		{"a.bin", "application/pdf", kindPDF},
		{"sheet", drive.MimeSpreadsheet, kindDriveSheet},
		{"a.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", kindUnsupported},
	}
	for _, c := range cases {
		if got := classify(c.name, c.mime); got != c.want {
			t.Errorf("classify(%q, %q) = %v, want %v", c.name, c.mime, got, c.want)
		}
	}
}
