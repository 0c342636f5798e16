// Package models defines the domain types for Atelier.
package models

import "time"

// NoteFormat tags how a note's content is encoded.
type NoteFormat string

// Note formats.
const (
	NoteFormatHTML     NoteFormat = "html"
	NoteFormatMarkdown NoteFormat = "markdown"
)

// Valid reports whether f is a known note format.
func (f NoteFormat) Valid() bool {
	return f == NoteFormatHTML || f == NoteFormatMarkdown
}

// Note is a rich-text or Markdown note in a project. Question records the
// user question for notes saved from an assistant answer.
type Note struct {
	ID        string     `json:"id"`
	ProjectID *string    `json:"projectId,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Format    NoteFormat `json:"format"`
	Question  string     `json:"question,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
