// Package markdown splits YAML frontmatter from Markdown text and derives
// document titles.
package markdown

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Document is a parsed Markdown text.
type Document struct {
	Frontmatter map[string]any
	Body        string
	Title       string
}

// Parse separates frontmatter from body and derives the title. Missing or
// invalid frontmatter leaves the whole input as body.
func Parse(data []byte) Document {
	fm, body := splitFrontmatter(data)
	return Document{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t, ok := fm["title"].(string); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Title returns the derived title of text, or its first non-empty line cut
// to maxRunes when it has none.
func Title(text string, maxRunes int) string {
	doc := Parse([]byte(text))
	if doc.Title != "" {
		return doc.Title
	}
	for _, line := range strings.Split(doc.Body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>*-"))
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxRunes {
			r := []rune(line)
			return strings.TrimSpace(string(r[:maxRunes])) + "..."
		}
		return line
	}
	return ""
}
