// Package assistant builds grounded chat turns and document summaries: it
// selects candidate sources, fetches their text, assembles the context with
// task and note summaries, and makes one completion call per request.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/llm"
	"github.com/starford/atelier/internal/markdown"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/store"
)

// Records is the read side of the record store the assistant needs.
type Records interface {
	GetSources(ctx context.Context, ids []string) ([]models.Source, error)
	ListSources(ctx context.Context, f store.SourceFilter) ([]models.Source, error)
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	ListNotes(ctx context.Context, projectID string) ([]models.Note, error)
}

// ContentFetcher resolves a source to text.
type ContentFetcher interface {
	Fetch(ctx context.Context, ownerID string, src models.Source, opts fetcher.Options) (fetcher.Result, error)
}

// SummaryCache memoizes summaries by content key.
type SummaryCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Limits bound the grounding context.
type Limits struct {
	MaxSources       int
	MaxDocChars      int
	MaxNoteChars     int
	MaxSummaryChars  int
	FetchConcurrency int
}

// DefaultLimits returns the standard context limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSources:       10,
		MaxDocChars:      8000,
		MaxNoteChars:     200,
		MaxSummaryChars:  30000,
		FetchConcurrency: 4,
	}
}

// Service runs chat turns and summaries.
type Service struct {
	records Records
	fetch   ContentFetcher
	llm     llm.Client
	limits  Limits
	model   string
	cache   SummaryCache
	logger  *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithLimits overrides DefaultLimits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		d := s.limits
		if l.MaxSources > 0 {
			d.MaxSources = l.MaxSources
		}
		if l.MaxDocChars > 0 {
			d.MaxDocChars = l.MaxDocChars
		}
		if l.MaxNoteChars > 0 {
			d.MaxNoteChars = l.MaxNoteChars
		}
		if l.MaxSummaryChars > 0 {
			d.MaxSummaryChars = l.MaxSummaryChars
		}
		if l.FetchConcurrency > 0 {
			d.FetchConcurrency = l.FetchConcurrency
		}
		s.limits = d
	}
}

// WithSummaryCache memoizes summaries. model namespaces the cache keys so a
// model change does not serve stale summaries.
func WithSummaryCache(c SummaryCache, model string) Option {
	return func(s *Service) {
		s.cache = c
		s.model = model
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
func New(records Records, fetch ContentFetcher, client llm.Client, opts ...Option) *Service {
	s := &Service{
		records: records,
		fetch:   fetch,
		llm:     client,
		limits:  DefaultLimits(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ChatRequest is one chat turn.
type ChatRequest struct {
	OwnerID   string
	Messages  []models.Message
	ProjectID string
	SourceIDs []string
	Intent    Intent
}

// ChatResponse carries the answer and the sources whose content was
// actually placed in the context.
type ChatResponse struct {
	Message string            `json:"message"`
	Sources []models.Citation `json:"sources"`
	Intent  Intent            `json:"intent"`
}

// Converse answers the last user message. Per-document failures are logged
// and the document is left out; a failed completion fails the turn.
func (s *Service) Converse(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := validateMessages(req.Messages); err != nil {
		return ChatResponse{}, err
	}
	intent := req.Intent
	if intent == "" {
		intent = IntentQA
	}

	candidates, err := s.candidates(ctx, req)
	if err != nil {
		return ChatResponse{}, err
	}
	docs, cited, err := s.fetchAll(ctx, req.OwnerID, candidates)
	if err != nil {
		return ChatResponse{}, err
	}

	tasks, err := s.records.ListTasks(ctx, req.ProjectID)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("assistant: list tasks: %w", err)
	}
	notes, err := s.records.ListNotes(ctx, req.ProjectID)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("assistant: list notes: %w", err)
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{
		Role:    string(models.RoleSystem),
		Content: systemPrompt(intent, taskLines(tasks), s.noteLines(notes), docs),
	})
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	answer, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("assistant: completion: %w", err)
	}

	s.logger.Info("assistant: chat answered",
		slog.String("intent", string(intent)),
		slog.Int("candidates", len(candidates)),
		slog.Int("cited", len(cited)))
	return ChatResponse{Message: answer, Sources: cited, Intent: intent}, nil
}

func validateMessages(msgs []models.Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: messages are required", apperr.ErrInvalidRequest)
	}
	for _, m := range msgs {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return fmt.Errorf("%w: unsupported message role %q", apperr.ErrInvalidRequest, m.Role)
		}
	}
	last := msgs[len(msgs)-1]
	if last.Role != models.RoleUser || strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: last message must be a non-empty user message", apperr.ErrInvalidRequest)
	}
	return nil
}

// candidates resolves the source set: the explicit ids in the order given,
// or the most recent sources in the project scope.
func (s *Service) candidates(ctx context.Context, req ChatRequest) ([]models.Source, error) {
	if len(req.SourceIDs) > 0 {
		srcs, err := s.records.GetSources(ctx, req.SourceIDs)
		if err != nil {
			return nil, fmt.Errorf("assistant: load sources: %w", err)
		}
		return srcs, nil
	}
	srcs, err := s.records.ListSources(ctx, store.SourceFilter{ProjectID: req.ProjectID, Limit: s.limits.MaxSources})
	if err != nil {
		return nil, fmt.Errorf("assistant: list sources: %w", err)
	}
	return srcs, nil
}

// fetchAll fetches candidates concurrently. Results keep candidate order.
// A source that fails to load is left out, except when Drive needs to be
// reconnected: that error cancels the remaining fetches and is returned.
func (s *Service) fetchAll(ctx context.Context, ownerID string, candidates []models.Source) ([]contextDoc, []models.Citation, error) {
	results := make([]fetcher.Result, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.limits.FetchConcurrency)
	for i, src := range candidates {
		g.Go(func() error {
			res, err := s.fetch.Fetch(gCtx, ownerID, src, fetcher.Options{MaxChars: s.limits.MaxDocChars})
			if errors.Is(err, apperr.ErrReconnectRequired) {
				return fmt.Errorf("assistant: fetch %s: %w", src.ID, err)
			}
			if err != nil {
				s.logger.Warn("assistant: source unavailable",
					slog.String("source", src.ID),
					slog.String("error", err.Error()))
				return nil
			}
			if res.Status != fetcher.StatusFetched {
				s.logger.Debug("assistant: source not used",
					slog.String("source", src.ID),
					slog.String("status", string(res.Status)),
					slog.String("reason", res.Reason))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	docs := []contextDoc{}
	cited := []models.Citation{}
	for i, res := range results {
		if res.Status != fetcher.StatusFetched || res.Text == "" {
			continue
		}
		docs = append(docs, contextDoc{Label: res.Label, Text: res.Text})
		cited = append(cited, models.Citation{ID: candidates[i].ID, Name: candidates[i].Name})
	}
	return docs, cited, nil
}

func taskLines(tasks []models.Task) []string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		status := "Active"
		if t.Completed {
			status = "Done"
		}
		desc := ""
		if t.Description != "" {
			desc = " - " + t.Description
		}
		lines = append(lines, fmt.Sprintf("Task: %s%s (Priority: %s, Status: %s)", t.Title, desc, t.Priority, status))
	}
	return lines
}

func (s *Service) noteLines(notes []models.Note) []string {
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("Note: %s - %s", n.Title, truncateRunes(noteText(n), s.limits.MaxNoteChars)))
	}
	return lines
}

// noteText renders a note body as plain text.
func noteText(n models.Note) string {
	if n.Format == models.NoteFormatHTML {
		return markdown.StripTags(n.Content)
	}
	return strings.Join(strings.Fields(markdown.Parse([]byte(n.Content)).Body), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
