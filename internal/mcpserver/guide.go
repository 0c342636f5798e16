package mcpserver

const guideURI = "atelier://guide"

// UsageGuide describes how LLM clients should use the Atelier tools.
const UsageGuide = `# Atelier Usage Guide

Atelier is a research workspace: **sources** (documents), **tasks**, **notes** and
**projects** that group them. The assistant answers from that data.

## Sources

- ` + "`" + `list_sources` + "`" + ` shows id, name and type, newest first.
- Readable types: PDF (text-based, no OCR), plain text, Markdown, HTML, CSV, and
  linked Google Docs, Sheets and Slides.
- Files over 5 MB and unsupported types are skipped silently when building context.
- ` + "`" + `add_source` + "`" + ` stores a document from a URL or a base64 data URI.

## Asking

- ` + "`" + `ask_assistant` + "`" + ` with no ` + "`" + `source_ids` + "`" + ` uses the 10 most recent sources.
- Pass ` + "`" + `source_ids` + "`" + ` (comma-separated) to pick documents; the order you give is kept.
- Two or more ids switch to cross-document analysis unless ` + "`" + `intent` + "`" + ` is set.
- The response lists the sources whose text was actually used.
- Set ` + "`" + `save` + "`" + ` to keep the answer as a Markdown note titled after the question.

## Notes

- ` + "`" + `save_note` + "`" + ` creates a note; ` + "`" + `format` + "`" + ` is ` + "`" + `markdown` + "`" + ` (default) or ` + "`" + `html` + "`" + `.
- The format is fixed at creation. HTML is sanitised on save.
- ` + "`" + `search_notes` + "`" + ` runs full-text search over titles and bodies.
`
