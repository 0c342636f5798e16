package markdown

import (
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	stripPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)
	notePolicy  = bluemonday.UGCPolicy()
)

// FromHTML converts an HTML document or fragment to Markdown.
func FromHTML(src string) (string, error) {
	md, err := htmlConverter.ConvertString(src)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// StripTags removes every tag from src, unescapes entities and collapses
// whitespace, leaving plain text.
func StripTags(src string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(src))
	return strings.Join(strings.Fields(text), " ")
}

// SanitizeHTML removes scripts, event handlers and other unsafe markup from
// rich-editor HTML while keeping formatting.
func SanitizeHTML(src string) string {
	return notePolicy.Sanitize(src)
}
