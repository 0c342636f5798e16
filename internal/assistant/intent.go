package assistant

import (
	"fmt"
	"strings"

	"github.com/starford/atelier/internal/apperr"
)

// Intent selects the prompt template for a chat turn.
type Intent string

// Chat intents.
const (
	// IntentQA answers a question grounded in the user's data.
	IntentQA Intent = "qa"
	// IntentInsight analyzes several documents against each other.
	IntentInsight Intent = "insight"
)

// ParseIntent validates a caller-supplied intent. The empty string means
// "not specified".
func ParseIntent(s string) (Intent, error) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case IntentQA:
		return IntentQA, nil
	case IntentInsight:
		return IntentInsight, nil
	default:
		return "", fmt.Errorf("%w: unknown intent %q", apperr.ErrInvalidRequest, s)
	}
}

// DeriveIntent returns explicit when set; otherwise a request naming two or
// more sources is an insight request and anything else is Q&A.
func DeriveIntent(explicit Intent, sourceIDs []string) Intent {
	if explicit != "" {
		return explicit
	}
	if len(sourceIDs) >= 2 {
		return IntentInsight
	}
	return IntentQA
}
