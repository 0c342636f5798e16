package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/checksum"
	"github.com/starford/atelier/internal/fetcher"
	"github.com/starford/atelier/internal/llm"
	"github.com/starford/atelier/internal/models"
)

// Summarize returns a structured summary of one source. A source with no
// extractable text is an error, never an empty summary.
func (s *Service) Summarize(ctx context.Context, ownerID string, src models.Source) (string, error) {
	res, err := s.fetch.Fetch(ctx, ownerID, src, fetcher.Options{MaxChars: s.limits.MaxSummaryChars})
	if err != nil {
		return "", fmt.Errorf("assistant: fetch %s: %w", src.ID, err)
	}
	switch res.Status {
	case fetcher.StatusSkipped:
		return "", fmt.Errorf("%w: %s", apperr.ErrUnsupported, res.Reason)
	case fetcher.StatusEmpty:
		return "", apperr.ErrEmptyContent
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", apperr.ErrEmptyContent
	}

	key := s.summaryKey(res.Text)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("assistant: summary cache read failed", slog.String("error", err.Error()))
		} else if ok {
			return cached, nil
		}
	}

	summary, err := s.llm.Complete(ctx, []llm.Message{
		{Role: string(models.RoleSystem), Content: summarySystemPrompt},
		{Role: string(models.RoleUser), Content: fmt.Sprintf(summaryUserPrompt, res.Text)},
	})
	if err != nil {
		return "", fmt.Errorf("assistant: completion: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary); err != nil {
			s.logger.Warn("assistant: summary cache write failed", slog.String("error", err.Error()))
		}
	}
	return summary, nil
}

// summaryKey identifies a summary by model and the exact truncated input.
func (s *Service) summaryKey(text string) string {
	return "summary:" + checksum.Key(s.model, text)
}
