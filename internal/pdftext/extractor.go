// Package pdftext recovers plain text from PDF bytes. Two strategies are
// available behind DocumentExtractor: a byte-pattern heuristic that needs no
// parser, and a pdfcpu-backed parser that decodes content streams first.
package pdftext

import (
	"fmt"
	"strings"
)

// Status classifies how much text an extraction recovered.
type Status string

// Extraction statuses.
const (
	StatusExtracted Status = "extracted"
	StatusPartial   Status = "partial"
	StatusEmpty     Status = "empty"
)

// PartialThreshold is the word count below which an extraction is partial.
const PartialThreshold = 50

// Strategy names accepted by New.
const (
	StrategyHeuristic = "heuristic"
	StrategyParser    = "pdfcpu"
	StrategyAuto      = "auto"
)

// Extraction is the result of reading one PDF.
type Extraction struct {
	Text      string
	WordCount int
	Status    Status
}

// DocumentExtractor turns raw PDF bytes into text.
type DocumentExtractor interface {
	Extract(data []byte) (Extraction, error)
}

// New returns the extractor for the named strategy.
func New(strategy string) (DocumentExtractor, error) {
	switch strategy {
	case StrategyHeuristic:
		return Heuristic{}, nil
	case StrategyParser:
		return NewParser(), nil
	case "", StrategyAuto:
		return Auto{Primary: NewParser(), Fallback: Heuristic{}}, nil
	default:
		return nil, fmt.Errorf("pdftext: unknown strategy %q", strategy)
	}
}

// Classify maps a word count to a Status.
func Classify(wordCount int) Status {
	switch {
	case wordCount == 0:
		return StatusEmpty
	case wordCount < PartialThreshold:
		return StatusPartial
	default:
		return StatusExtracted
	}
}

// CountWords returns the number of whitespace-delimited tokens in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func newExtraction(text string) Extraction {
	wc := CountWords(text)
	return Extraction{Text: text, WordCount: wc, Status: Classify(wc)}
}

// Auto runs Primary and falls back to Fallback when Primary fails or finds
// no text.
type Auto struct {
	Primary  DocumentExtractor
	Fallback DocumentExtractor
}

// Extract implements DocumentExtractor.
func (a Auto) Extract(data []byte) (Extraction, error) {
	ex, err := a.Primary.Extract(data)
	if err == nil && ex.Status != StatusEmpty {
		return ex, nil
	}
	return a.Fallback.Extract(data)
}
