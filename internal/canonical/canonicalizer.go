package canonical

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/corpora-core/internal/core/domain"
)

// Config configures canonicalization behavior.
type Config struct {
	// CaseFold lowercases canonical text when set. Off by default: case
	// differences are usually meaningful in eval datasets.
	CaseFold bool
}

// Canonicalizer rewrites raw record text into its canonical form. Every
// comparison downstream (content hashing, shingling, edit distance) runs
// on canonical text, so the same input must always produce the same
// output.
type Canonicalizer struct {
	config Config
}

// New creates a canonicalizer with the given config.
func New(config Config) *Canonicalizer {
	return &Canonicalizer{config: config}
}

// Canonicalize normalizes raw text:
//  1. Validate encoding - text that is not valid UTF-8 fails with
//     domain.ErrInvalidEncoding
//  2. Unicode NFC normalization
//  3. Trim and collapse whitespace runs to a single space
//  4. Optional case folding
//
// Text that comes out empty fails with domain.ErrEmptyRecord.
func (c *Canonicalizer) Canonicalize(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: raw text is not valid UTF-8", domain.ErrInvalidEncoding)
	}

	text := norm.NFC.String(raw)
	text = collapseWhitespace(text)

	if c.config.CaseFold {
		text = strings.ToLower(text)
	}

	if text == "" {
		return "", domain.ErrEmptyRecord
	}
	return text, nil
}

// collapseWhitespace trims the text and replaces every run of Unicode
// whitespace with a single space.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
