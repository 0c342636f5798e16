package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxPages bounds how many pages the parser reads.
const DefaultMaxPages = 20

// Parser reads the PDF structure with pdfcpu, decodes each page's content
// stream and pulls the text operators out of it.
type Parser struct {
	MaxPages int
}

// NewParser returns a Parser reading up to DefaultMaxPages pages.
func NewParser() *Parser {
	return &Parser{MaxPages: DefaultMaxPages}
}

// Extract implements DocumentExtractor.
func (p *Parser) Extract(data []byte) (Extraction, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return Extraction{}, fmt.Errorf("pdftext: pdfcpu read: %w", err)
	}

	pages := ctx.PageCount
	if p.MaxPages > 0 && pages > p.MaxPages {
		pages = p.MaxPages
	}

	var sb strings.Builder
	words := 0
	for pageNr := 1; pageNr <= pages; pageNr++ {
		text := pageText(ctx, pageNr)
		if text == "" {
			continue
		}
		words += CountWords(text)
		fmt.Fprintf(&sb, "--- Page %d ---\n%s\n", pageNr, text)
	}

	return Extraction{
		Text:      strings.TrimSpace(sb.String()),
		WordCount: words,
		Status:    Classify(words),
	}, nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return scanText(data)
}
