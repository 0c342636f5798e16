package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/blob"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/sse"
	"github.com/starford/atelier/internal/store"
	"github.com/starford/atelier/internal/testutil"
)

type recordedEvent struct {
	entity, action, id string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishChange(entity, action string, c sse.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{entity, action, c.ID})
}

func (p *fakePublisher) last() recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return recordedEvent{}
	}
	return p.events[len(p.events)-1]
}

var fixed = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	db     *store.DB
	blobs  *blob.FS
	dir    string
	events *fakePublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.TestDB(t)
	dir, blobs := testutil.TestBlobs(t)
	events := &fakePublisher{}
	svc := New(db, blobs, WithPublisher(events), WithClock(func() time.Time { return fixed }))
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return fixture{svc: svc, db: db, blobs: blobs, dir: dir, events: events}
}

func TestUpload_StoresBlobAndRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src, err := f.svc.Upload(ctx, UploadInput{Name: "notes.txt", MimeType: "text/plain", Body: strings.NewReader("hello world")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	wantKey := fmt.Sprintf("%d-notes.txt", fixed.UnixMilli())
	if src.Locator != models.InternalLocator(wantKey) {
		t.Errorf("locator = %+v, want key %s", src.Locator, wantKey)
	}
	if src.Size != 11 {
		t.Errorf("size = %d, want 11", src.Size)
	}
	data, err := os.ReadFile(filepath.Join(f.dir, wantKey))
	if err != nil || string(data) != "hello world" {
		t.Errorf("blob content = %q, %v", data, err)
	}
	if got, err := f.db.GetSource(ctx, src.ID); err != nil || got.Name != "notes.txt" {
		t.Errorf("GetSource = %+v, %v", got, err)
	}
	if ev := f.events.last(); ev != (recordedEvent{sse.EntitySource, sse.ActionCreated, src.ID}) {
		t.Errorf("event = %+v", ev)
	}
}

func TestUpload_StripsDirectoriesFromName(t *testing.T) {
	f := newFixture(t)
	src, err := f.svc.Upload(context.Background(), UploadInput{Name: "../../etc/passwd", MimeType: "text/plain", Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if src.Name != "passwd" || strings.Contains(src.Locator.Path, "/") {
		t.Errorf("source = %+v", src)
	}
}

func TestUpload_UnknownProjectRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Upload(context.Background(), UploadInput{Name: "a.txt", ProjectID: "nope", Body: strings.NewReader("x")})
	if !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestUpload_RequiresNameAndBody(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Upload(context.Background(), UploadInput{Body: strings.NewReader("x")}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("missing name: %v", err)
	}
	if _, err := f.svc.Upload(context.Background(), UploadInput{Name: "a.txt"}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("missing body: %v", err)
	}
}

func TestDeleteSource_RemovesBlobThenRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src, err := f.svc.Upload(ctx, UploadInput{Name: "a.txt", Body: strings.NewReader("abc")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := f.svc.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.dir, src.Locator.Path)); !os.IsNotExist(err) {
		t.Errorf("blob still present: %v", err)
	}
	if _, err := f.db.GetSource(ctx, src.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("row still present: %v", err)
	}
	if err := f.svc.DeleteSource(ctx, src.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

type failingRemove struct{ blob.Provider }

func (failingRemove) Remove(context.Context, string) error { return errors.New("disk on fire") }

func TestDeleteSource_KeepsRowWhenBlobRemovalFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src, err := f.svc.Upload(ctx, UploadInput{Name: "a.txt", Body: strings.NewReader("abc")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	f.svc.blobs = failingRemove{f.blobs}
	if err := f.svc.DeleteSource(ctx, src.ID); err == nil {
		t.Fatal("expected error")
	}
	if _, err := f.db.GetSource(ctx, src.ID); err != nil {
		t.Errorf("row should be kept: %v", err)
	}
}

func TestLinkDriveFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := DriveFileInput{
		FileID:      "1AbCdEfGhIjKlMnOpQrStUvWxYz012345",
		Name:        "Plan",
		MimeType:    "application/vnd.google-apps.document",
		WebViewLink: "https://docs.google.com/document/d/1AbCdEfGhIjKlMnOpQrStUvWxYz012345/edit",
	}
	src, err := f.svc.LinkDriveFile(ctx, in)
	if err != nil {
		t.Fatalf("LinkDriveFile: %v", err)
	}
	if src.Locator.Kind != models.LocatorExternal || src.Locator.URL != in.WebViewLink {
		t.Errorf("locator = %+v", src.Locator)
	}
	if _, err := f.svc.LinkDriveFile(ctx, in); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("relink: %v", err)
	}

	in.FileID = "9ZyXwVuTsRqPoNmLkJiHgFeDcBa987654"
	in.WebViewLink = ""
	src, err = f.svc.LinkDriveFile(ctx, in)
	if err != nil {
		t.Fatalf("LinkDriveFile without link: %v", err)
	}
	if want := "https://drive.google.com/file/d/" + in.FileID + "/view"; src.Locator.URL != want {
		t.Errorf("url = %q, want %q", src.Locator.URL, want)
	}

	if err := f.svc.DeleteSource(ctx, src.ID); err != nil {
		t.Errorf("delete external source: %v", err)
	}
}

func TestOpenSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src, _ := f.svc.Upload(ctx, UploadInput{Name: "a.txt", Body: strings.NewReader("abc")})

	_, rc, err := f.svc.OpenSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "abc" {
		t.Errorf("content = %q", data)
	}

	linked, _ := f.svc.LinkDriveFile(ctx, DriveFileInput{FileID: "1AbCdEfGhIjKlMnOpQrStUvWxYz012345", Name: "d"})
	if _, _, err := f.svc.OpenSource(ctx, linked.ID); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("external source: %v", err)
	}
}

func TestRegisterAndForgetBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	obj := blob.Object{Key: "1717000000000-report.pdf", Size: 42, ModTime: fixed}

	src, created, err := f.svc.RegisterBlob(ctx, obj)
	if err != nil || !created {
		t.Fatalf("RegisterBlob = %v, %v", created, err)
	}
	if src.Name != "report.pdf" || src.MimeType != "application/pdf" || src.Size != 42 {
		t.Errorf("source = %+v", src)
	}
	if _, created, _ := f.svc.RegisterBlob(ctx, obj); created {
		t.Error("second register should be a no-op")
	}

	gone, err := f.svc.ForgetBlob(ctx, obj.Key)
	if err != nil || !gone {
		t.Fatalf("ForgetBlob = %v, %v", gone, err)
	}
	if gone, _ := f.svc.ForgetBlob(ctx, obj.Key); gone {
		t.Error("second forget should report nothing removed")
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"1717000000000-report.pdf": "report.pdf",
		"my-report.pdf":            "my-report.pdf",
		"plain.txt":                "plain.txt",
		"123-":                     "123-",
	}
	for in, want := range cases {
		if got := displayName(in); got != want {
			t.Errorf("displayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProjects_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProject(ctx, ProjectInput{Name: "Thesis"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := f.svc.CreateProject(ctx, ProjectInput{}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("empty name: %v", err)
	}
	updated, err := f.svc.UpdateProject(ctx, p.ID, ProjectInput{Name: "Dissertation", Description: "ch. 1-5"})
	if err != nil || updated.Name != "Dissertation" {
		t.Fatalf("UpdateProject = %+v, %v", updated, err)
	}
	task, err := f.svc.CreateTask(ctx, TaskInput{Title: "outline", ProjectID: p.ID})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := f.svc.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	got, err := f.db.GetTask(ctx, task.ID)
	if err != nil || got.ProjectID != nil {
		t.Errorf("task should survive detached: %+v, %v", got, err)
	}
	if _, err := f.svc.UpdateProject(ctx, p.ID, ProjectInput{Name: "x"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update deleted project: %v", err)
	}
}

func TestTasks_ToggleAndReorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		task, err := f.svc.CreateTask(ctx, TaskInput{Title: title})
		if err != nil {
			t.Fatalf("CreateTask(%s): %v", title, err)
		}
		if task.Priority != models.PriorityMedium {
			t.Errorf("default priority = %s", task.Priority)
		}
		ids = append(ids, task.ID)
	}

	toggled, err := f.svc.ToggleTask(ctx, ids[0])
	if err != nil || !toggled.Completed {
		t.Fatalf("ToggleTask = %+v, %v", toggled, err)
	}
	if toggled, _ = f.svc.ToggleTask(ctx, ids[0]); toggled.Completed {
		t.Error("second toggle should clear completion")
	}

	order := []string{ids[2], ids[0], ids[1]}
	if err := f.svc.ReorderTasks(ctx, order); err != nil {
		t.Fatalf("ReorderTasks: %v", err)
	}
	tasks, err := f.svc.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for i, task := range tasks {
		if task.ID != order[i] || task.SortOrder != i {
			t.Errorf("tasks[%d] = %s (order %d), want %s (order %d)", i, task.ID, task.SortOrder, order[i], i)
		}
	}

	if err := f.svc.ReorderTasks(ctx, []string{ids[0], ids[0]}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("duplicate ids: %v", err)
	}
	if err := f.svc.ReorderTasks(ctx, nil); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("empty ids: %v", err)
	}
}

func TestTasks_Validation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateTask(context.Background(), TaskInput{Title: "x", Priority: "urgent"}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("bad priority: %v", err)
	}
}

func TestTasks_UpdateKeepsCompletionUnlessSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, _ := f.svc.CreateTask(ctx, TaskInput{Title: "a"})
	_, _ = f.svc.ToggleTask(ctx, task.ID)

	updated, err := f.svc.UpdateTask(ctx, task.ID, TaskInput{Title: "a2", Priority: models.PriorityHigh})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if !updated.Completed || updated.Title != "a2" || updated.Priority != models.PriorityHigh {
		t.Errorf("task = %+v", updated)
	}
	done := false
	if updated, _ = f.svc.UpdateTask(ctx, task.ID, TaskInput{Title: "a2", Completed: &done}); updated.Completed {
		t.Error("explicit completed=false ignored")
	}
}

func TestNotes_HTMLSanitisedMarkdownVerbatim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	html, err := f.svc.CreateNote(ctx, NoteInput{
		Title:   "Clip",
		Content: `<p onclick="x()">Hi</p><script>alert(1)</script>`,
		Format:  models.NoteFormatHTML,
	})
	if err != nil {
		t.Fatalf("CreateNote html: %v", err)
	}
	if strings.Contains(html.Content, "script") || strings.Contains(html.Content, "onclick") || !strings.Contains(html.Content, "Hi") {
		t.Errorf("html content = %q", html.Content)
	}

	md := "# Heading\n\n<script>kept as text</script>"
	note, err := f.svc.CreateNote(ctx, NoteInput{Title: "Draft", Content: md, Format: models.NoteFormatMarkdown})
	if err != nil {
		t.Fatalf("CreateNote markdown: %v", err)
	}
	if note.Content != md {
		t.Errorf("markdown content changed: %q", note.Content)
	}

	if _, err := f.svc.CreateNote(ctx, NoteInput{Title: "x", Content: "y"}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("missing format: %v", err)
	}
	if _, err := f.svc.CreateNote(ctx, NoteInput{Title: "x", Content: "y", Format: "rtf"}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("unknown format: %v", err)
	}
}

func TestNotes_UpdateKeepsFormat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, _ := f.svc.CreateNote(ctx, NoteInput{Title: "a", Content: "<b>x</b>", Format: models.NoteFormatHTML})

	updated, err := f.svc.UpdateNote(ctx, n.ID, NoteUpdate{Title: "b", Content: `<img src=x onerror="y()">`})
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if updated.Format != models.NoteFormatHTML || strings.Contains(updated.Content, "onerror") {
		t.Errorf("note = %+v", updated)
	}
	if ev := f.events.last(); ev.action != sse.ActionUpdated || ev.entity != sse.EntityNote {
		t.Errorf("event = %+v", ev)
	}
}

func TestSaveAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.SaveAnswer(ctx, AnswerInput{
		Question: "What do my sources say about soil carbon in temperate forests over the last decade?",
		Answer:   "They agree it is rising.",
		Sources:  []models.Citation{{ID: "s1", Name: "paper.pdf"}},
	})
	if err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if n.Format != models.NoteFormatMarkdown || n.Question == "" {
		t.Errorf("note = %+v", n)
	}
	if !strings.HasSuffix(n.Title, "...") || len([]rune(n.Title)) > answerTitleRunes+3 {
		t.Errorf("title = %q", n.Title)
	}
	if !strings.Contains(n.Content, "- paper.pdf") {
		t.Errorf("content = %q", n.Content)
	}
	if _, err := f.svc.SaveAnswer(ctx, AnswerInput{Question: "q"}); !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("missing answer: %v", err)
	}
}

func TestSearchNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.svc.CreateNote(ctx, NoteInput{Title: "Mycorrhiza", Content: "fungal networks", Format: models.NoteFormatMarkdown})
	_, _ = f.svc.CreateNote(ctx, NoteInput{Title: "Budget", Content: "grant money", Format: models.NoteFormatMarkdown})

	res, err := f.svc.SearchNotes(ctx, "fungal", 0)
	if err != nil {
		t.Fatalf("SearchNotes: %v", err)
	}
	if len(res) != 1 || res[0].Title != "Mycorrhiza" {
		t.Errorf("results = %+v", res)
	}
	if res, _ := f.svc.SearchNotes(ctx, "   ", 10); len(res) != 0 {
		t.Errorf("blank query results = %+v", res)
	}
}

func TestRegisterBlob_SkipsKeyInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.claim("123-busy.txt")

	if _, created, err := f.svc.RegisterBlob(ctx, blob.Object{Key: "123-busy.txt"}); err != nil || created {
		t.Errorf("RegisterBlob during upload = %v, %v", created, err)
	}
	f.svc.release("123-busy.txt")
	if _, created, err := f.svc.RegisterBlob(ctx, blob.Object{Key: "123-busy.txt"}); err != nil || !created {
		t.Errorf("RegisterBlob after upload = %v, %v", created, err)
	}
}
