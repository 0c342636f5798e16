package assistant

import (
	"fmt"
	"strings"
)

const qaSystemPrompt = `You are a helpful AI research assistant that helps users manage their tasks, notes and documents.

Here is the current data:

TASKS:
%s

NOTES:
%s

DOCUMENTS:
%s

Instructions:
- Answer the user's question using the tasks, notes and documents above. Be concise and helpful.
- When you use a document, cite it by name inline.
- If the question is unrelated to the user's data, answer from general knowledge and say so.
- End your answer with a line of the form "Sources: <document names>" listing the documents you used, or "Sources: none".`

const insightSystemPrompt = `You are an AI research analyst. The user selected several documents and wants them analyzed together.

DOCUMENTS:
%s

Related tasks:
%s

Related notes:
%s

Instructions:
- Identify the common themes across the documents.
- Point out contradictions or disagreements between them.
- Describe connections between ideas in different documents.
- Finish with concrete, actionable insights.
- Refer to documents by name.
- End your answer with a line of the form "Sources analyzed: <document names separated by commas>".`

const summarySystemPrompt = "You are a helpful assistant that creates clear, concise document summaries."

const summaryUserPrompt = `Please provide a concise summary of the following document. Include:
- Main topics or themes
- Key points or findings
- Any important data or conclusions

Document content:
%s`

const (
	noTasks     = "No tasks found."
	noNotes     = "No notes found."
	noDocuments = "No documents available."
)

// contextDoc is one fetched document placed in the grounding context.
type contextDoc struct {
	Label string
	Text  string
}

func formatDocuments(docs []contextDoc) string {
	if len(docs) == 0 {
		return noDocuments
	}
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Document %d: %s ---\n%s", i+1, d.Label, d.Text)
	}
	return sb.String()
}

func orDefault(lines []string, fallback string) string {
	if len(lines) == 0 {
		return fallback
	}
	return strings.Join(lines, "\n")
}

// systemPrompt renders the template for intent.
func systemPrompt(intent Intent, tasks, notes []string, docs []contextDoc) string {
	if intent == IntentInsight {
		return fmt.Sprintf(insightSystemPrompt, formatDocuments(docs), orDefault(tasks, noTasks), orDefault(notes, noNotes))
	}
	return fmt.Sprintf(qaSystemPrompt, orDefault(tasks, noTasks), orDefault(notes, noNotes), formatDocuments(docs))
}
