package pdftext

import (
	"bytes"
	"strings"
	"unicode"
)

// Heuristic scans raw PDF bytes for literal strings without parsing the
// document structure. When the bytes contain BT/ET text objects only the
// literals inside them are used; otherwise every literal counts.
//
// Compressed or font-remapped PDFs yield little or nothing. That is a known
// limitation of the approach.
type Heuristic struct{}

// Extract implements DocumentExtractor.
func (Heuristic) Extract(data []byte) (Extraction, error) {
	return newExtraction(scanText(data)), nil
}

// scanText extracts and cleans text from a PDF byte stream or a decoded
// content stream.
func scanText(data []byte) string {
	var parts []string
	blocks := textObjects(data)
	if len(blocks) > 0 {
		for _, b := range blocks {
			parts = append(parts, literals(b)...)
		}
	} else {
		parts = literals(data)
	}
	return cleanText(strings.Join(parts, " "))
}

// textObjects returns the byte ranges between BT and ET operators.
func textObjects(data []byte) [][]byte {
	var out [][]byte
	rest := data
	for {
		start := indexOperator(rest, "BT")
		if start < 0 {
			return out
		}
		rest = rest[start+2:]
		end := indexOperator(rest, "ET")
		if end < 0 {
			return append(out, rest)
		}
		out = append(out, rest[:end])
		rest = rest[end+2:]
	}
}

// indexOperator finds op as a standalone token (delimited by whitespace,
// delimiters or the buffer edges).
func indexOperator(data []byte, op string) int {
	offset := 0
	for {
		i := bytes.Index(data[offset:], []byte(op))
		if i < 0 {
			return -1
		}
		i += offset
		end := i + len(op)
		if (i == 0 || isDelimiter(data[i-1])) && (end == len(data) || isDelimiter(data[end])) {
			return i
		}
		offset = i + 1
	}
}

func isDelimiter(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '[', ']', '<', '>', '/', '{', '}', '%':
		return true
	}
	return false
}

// literals returns the decoded, printable literal strings in data. Balanced
// nested parentheses are kept as part of the literal.
func literals(data []byte) []string {
	var out []string
	for i := 0; i < len(data); i++ {
		if data[i] != '(' {
			continue
		}
		raw, next := readLiteral(data, i+1)
		i = next
		if s := decodeLiteral(raw); isReadable(s) {
			out = append(out, s)
		}
	}
	return out
}

// readLiteral reads from just after an opening parenthesis to its matching
// close. It returns the raw body and the index of the closing parenthesis.
func readLiteral(data []byte, start int) ([]byte, int) {
	depth := 1
	for i := start; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return data[start:i], i
			}
		}
	}
	return data[start:], len(data)
}

// decodeLiteral resolves backslash escapes. Bytes map to runes one-to-one
// (Latin-1), which keeps the output deterministic for any input.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			sb.WriteRune(rune(c))
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
			sb.WriteByte(' ')
		case '(', ')', '\\':
			sb.WriteByte(raw[i])
		case '\r', '\n':
			// Line continuation.
			if raw[i] == '\r' && i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteRune(rune(byte(val)))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// isReadable rejects literals that are mostly control characters, which is
// what parentheses inside compressed binary streams look like.
func isReadable(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	total, printable := 0, 0
	for _, r := range s {
		total++
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	return printable*10 >= total*9
}

// cleanText collapses whitespace and drops non-printable runes.
func cleanText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
