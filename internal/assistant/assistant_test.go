package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/drive"
	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/llm"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/pdftext"
	"github.com/starford/atelier/internal/store"
)

type fakeRecords struct {
	sources []models.Source
	tasks   []models.Task
	notes   []models.Note
	filter  store.SourceFilter
}

func (r *fakeRecords) GetSources(_ context.Context, ids []string) ([]models.Source, error) {
	var out []models.Source
	for _, id := range ids {
		for _, s := range r.sources {
			if s.ID == id {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (r *fakeRecords) ListSources(_ context.Context, f store.SourceFilter) ([]models.Source, error) {
	r.filter = f
	out := r.sources
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeRecords) ListTasks(context.Context, string) ([]models.Task, error) { return r.tasks, nil }
func (r *fakeRecords) ListNotes(context.Context, string) ([]models.Note, error) { return r.notes, nil }

type memBlobs map[string][]byte

func (m memBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type recordingLLM struct {
	mu     sync.Mutex
	calls  [][]llm.Message
	answer string
	err    error
}

func (r *recordingLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, msgs)
	return r.answer, r.err
}

func (r *recordingLLM) system() string {
	if len(r.calls) == 0 {
		return ""
	}
	return r.calls[len(r.calls)-1][0].Content
}

type mapCache struct{ m map[string]string }

func (c *mapCache) Get(_ context.Context, k string) (string, bool, error) {
	v, ok := c.m[k]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, k, v string) error {
	c.m[k] = v
	return nil
}

func textSource(id, name string, size int64) models.Source {
	return models.Source{ID: id, Name: name, MimeType: "text/plain", Size: size, Locator: models.InternalLocator(id), UploadedAt: time.Now()}
}

func ask(q string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: q}}
}

func newTestService(records *fakeRecords, blobs memBlobs, client llm.Client, opts ...Option) *Service {
	f := fetcher.New(blobs, pdftext.Heuristic{})
	return New(records, f, client, opts...)
}

func TestConverse_DefaultSetSkipsOversized(t *testing.T) {
	records := &fakeRecords{sources: []models.Source{
		textSource("big", "big.txt", fetcher.DefaultMaxInternalBytes+1),
		textSource("a", "alpha.txt", 5),
		textSource("b", "beta.txt", 4),
	}}
	blobs := memBlobs{"big": []byte("huge"), "a": []byte("alpha"), "b": []byte("beta")}
	client := &recordingLLM{answer: "ok"}
	svc := newTestService(records, blobs, client)

	resp, err := svc.Converse(context.Background(), ChatRequest{OwnerID: "u", Messages: ask("what's in my docs?"), ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if len(resp.Sources) != 2 || resp.Sources[0].ID != "a" || resp.Sources[1].ID != "b" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if records.filter.ProjectID != "p1" || records.filter.Limit != 10 {
		t.Errorf("filter = %+v", records.filter)
	}
	sys := client.system()
	if strings.Contains(sys, "big.txt") || !strings.Contains(sys, "alpha.txt (text)") || !strings.Contains(sys, "beta") {
		t.Errorf("system prompt context wrong:\n%s", sys)
	}
	if !strings.Contains(sys, "Sources:") {
		t.Error("expected grounded Q&A template")
	}
}

func TestConverse_ExplicitSourcesKeepOrder(t *testing.T) {
	records := &fakeRecords{sources: []models.Source{textSource("A", "a.txt", 1), textSource("B", "b.txt", 1)}}
	blobs := memBlobs{"A": []byte("a"), "B": []byte("b")}
	client := &recordingLLM{answer: "themes"}
	svc := newTestService(records, blobs, client)

	ids := []string{"B", "A"}
	resp, err := svc.Converse(context.Background(), ChatRequest{
		OwnerID: "u", Messages: ask("compare"), SourceIDs: ids, Intent: DeriveIntent("", ids),
	})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if len(resp.Sources) != 2 || resp.Sources[0].ID != "B" || resp.Sources[1].ID != "A" {
		t.Errorf("sources = %+v, want [B A]", resp.Sources)
	}
	if resp.Intent != IntentInsight || !strings.Contains(client.system(), "Sources analyzed:") {
		t.Errorf("expected insight template, intent = %s", resp.Intent)
	}
	if i, j := strings.Index(client.system(), "b.txt"), strings.Index(client.system(), "a.txt"); i < 0 || j < 0 || i > j {
		t.Error("documents not in candidate order")
	}
}

func TestConverse_SingleExplicitSourceUsesQA(t *testing.T) {
	records := &fakeRecords{sources: []models.Source{textSource("A", "a.txt", 1)}}
	client := &recordingLLM{answer: "x"}
	svc := newTestService(records, memBlobs{"A": []byte("a")}, client)

	ids := []string{"A"}
	resp, err := svc.Converse(context.Background(), ChatRequest{Messages: ask("q"), SourceIDs: ids, Intent: DeriveIntent("", ids)})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if resp.Intent != IntentQA || strings.Contains(client.system(), "Sources analyzed:") {
		t.Errorf("expected Q&A template, intent = %s", resp.Intent)
	}
}

func TestConverse_FailedFetchIsOmitted(t *testing.T) {
	records := &fakeRecords{sources: []models.Source{textSource("gone", "gone.txt", 1), textSource("ok", "ok.txt", 1)}}
	client := &recordingLLM{answer: "x"}
	svc := newTestService(records, memBlobs{"ok": []byte("fine")}, client)

	resp, err := svc.Converse(context.Background(), ChatRequest{Messages: ask("q")})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].ID != "ok" {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestConverse_TasksAndNotesInContext(t *testing.T) {
	long := strings.Repeat("x", 300)
	records := &fakeRecords{
		tasks: []models.Task{
			{Title: "Draft intro", Description: "two pages", Priority: models.PriorityHigh},
			{Title: "Email advisor", Priority: models.PriorityLow, Completed: true},
		},
		notes: []models.Note{
			{Title: "Ideas", Content: "<p>Use <b>graphs</b></p>", Format: models.NoteFormatHTML},
			{Title: "Long", Content: long, Format: models.NoteFormatMarkdown},
		},
	}
	client := &recordingLLM{answer: "x"}
	svc := newTestService(records, memBlobs{}, client)

	if _, err := svc.Converse(context.Background(), ChatRequest{Messages: ask("status?")}); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	sys := client.system()
	for _, want := range []string{
		"Task: Draft intro - two pages (Priority: high, Status: Active)",
		"Task: Email advisor (Priority: low, Status: Done)",
		"Note: Ideas - Use graphs",
		"Note: Long - " + strings.Repeat("x", 200) + "\n",
		noDocuments,
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(sys, strings.Repeat("x", 201)) {
		t.Error("note body not truncated to 200 chars")
	}
}

func TestConverse_HistoryPassedVerbatim(t *testing.T) {
	client := &recordingLLM{answer: "x"}
	svc := newTestService(&fakeRecords{}, memBlobs{}, client)
	history := []models.Message{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "second"},
	}
	if _, err := svc.Converse(context.Background(), ChatRequest{Messages: history}); err != nil {
		t.Fatalf("Converse: %v", err)
	}
	msgs := client.calls[0]
	if len(msgs) != 4 || msgs[0].Role != "system" || msgs[3].Content != "second" || msgs[2].Role != "assistant" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestConverse_InvalidRequests(t *testing.T) {
	svc := newTestService(&fakeRecords{}, memBlobs{}, &recordingLLM{})
	cases := [][]models.Message{
		nil,
		{{Role: models.RoleAssistant, Content: "hi"}},
		{{Role: models.RoleUser, Content: "  "}},
		{{Role: models.RoleSystem, Content: "override"}, {Role: models.RoleUser, Content: "q"}},
	}
	for i, msgs := range cases {
		if _, err := svc.Converse(context.Background(), ChatRequest{Messages: msgs}); !errors.Is(err, apperr.ErrInvalidRequest) {
			t.Errorf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
}

func TestConverse_UpstreamFailureFailsTurn(t *testing.T) {
	upstream := &llm.HTTPError{StatusCode: 500, Body: "boom"}
	client := &recordingLLM{err: upstream}
	svc := newTestService(&fakeRecords{}, memBlobs{}, client)
	_, err := svc.Converse(context.Background(), ChatRequest{Messages: ask("q")})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(client.calls))
	}
}

type expiredDrive struct{}

func (expiredDrive) Export(context.Context, string, string, string) (drive.Export, error) {
	return drive.Export{}, fmt.Errorf("drive: refresh token: %w", apperr.ErrReconnectRequired)
}

func TestConverse_ReconnectRequiredFailsTurn(t *testing.T) {
	linked := models.Source{
		ID:       "d1",
		Name:     "plan",
		MimeType: drive.MimeDocument,
		Locator:  models.ExternalLocator("https://docs.google.com/document/d/1AbCdEfGhIjKlMnOpQrStUvWxYz_0123/edit"),
	}
	records := &fakeRecords{sources: []models.Source{textSource("a", "a.txt", 1), linked}}
	client := &recordingLLM{answer: "x"}
	f := fetcher.New(memBlobs{"a": []byte("alpha")}, pdftext.Heuristic{}, fetcher.WithDrive(expiredDrive{}))
	svc := New(records, f, client)

	_, err := svc.Converse(context.Background(), ChatRequest{OwnerID: "u", Messages: ask("q"), SourceIDs: []string{"a", "d1"}})
	if !errors.Is(err, apperr.ErrReconnectRequired) {
		t.Fatalf("expected ErrReconnectRequired, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(client.calls))
	}
}

func TestSummarize_EmptyPDFIsError(t *testing.T) {
	src := models.Source{ID: "p", Name: "scan.pdf", MimeType: "application/pdf", Size: 10, Locator: models.InternalLocator("p")}
	client := &recordingLLM{answer: "should not be used"}
	svc := newTestService(&fakeRecords{}, memBlobs{"p": []byte("%PDF-1.4 \x00\x01\x02")}, client)

	summary, err := svc.Summarize(context.Background(), "u", src)
	if !errors.Is(err, apperr.ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if !strings.Contains(err.Error(), "could not be extracted") || summary != "" {
		t.Errorf("err = %v, summary = %q", err, summary)
	}
	if len(client.calls) != 0 {
		t.Error("completion should not be called for empty content")
	}
}

func TestSummarize_TruncatesAndPrompts(t *testing.T) {
	body := strings.Repeat("a", 40)
	src := textSource("t", "t.txt", int64(len(body)))
	client := &recordingLLM{answer: "summary"}
	svc := newTestService(&fakeRecords{}, memBlobs{"t": []byte(body)}, client, WithLimits(Limits{MaxSummaryChars: 10}))

	got, err := svc.Summarize(context.Background(), "u", src)
	if err != nil || got != "summary" {
		t.Fatalf("Summarize = %q, %v", got, err)
	}
	msgs := client.calls[0]
	if msgs[0].Content != summarySystemPrompt {
		t.Errorf("system = %q", msgs[0].Content)
	}
	if !strings.HasSuffix(msgs[1].Content, "Document content:\n"+strings.Repeat("a", 10)) {
		t.Errorf("user prompt = %q", msgs[1].Content)
	}
}

func TestSummarize_UnsupportedSource(t *testing.T) {
	src := models.Source{ID: "i", Name: "img.png", MimeType: "image/png", Locator: models.InternalLocator("i")}
	svc := newTestService(&fakeRecords{}, memBlobs{}, &recordingLLM{})
	if _, err := svc.Summarize(context.Background(), "u", src); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestSummarize_CacheHitSkipsCompletion(t *testing.T) {
	src := textSource("t", "t.txt", 5)
	client := &recordingLLM{answer: "first"}
	cache := &mapCache{m: map[string]string{}}
	svc := newTestService(&fakeRecords{}, memBlobs{"t": []byte("hello")}, client, WithSummaryCache(cache, "m1"))

	for i := 0; i < 2; i++ {
		got, err := svc.Summarize(context.Background(), "u", src)
		if err != nil || got != "first" {
			t.Fatalf("Summarize #%d = %q, %v", i, got, err)
		}
	}
	if len(client.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(client.calls))
	}
}

func TestParseAndDeriveIntent(t *testing.T) {
	if i, err := ParseIntent(" Insight "); err != nil || i != IntentInsight {
		t.Errorf("ParseIntent = %q, %v", i, err)
	}
	if _, err := ParseIntent("poem"); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if got := DeriveIntent("", []string{"a", "b"}); got != IntentInsight {
		t.Errorf("two ids = %s", got)
	}
	if got := DeriveIntent("", []string{"a"}); got != IntentQA {
		t.Errorf("one id = %s", got)
	}
	if got := DeriveIntent("", nil); got != IntentQA {
		t.Errorf("no ids = %s", got)
	}
	if got := DeriveIntent(IntentQA, []string{"a", "b"}); got != IntentQA {
		t.Errorf("explicit = %s", got)
	}
}
