// Package analysis turns raw text into field-qualified index terms.
// The same analyzer instance is used at build time and at query time;
// the two must never diverge or scores stop lining up with norms.
package analysis

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// punctuation glyphs always added to the stoplist, whatever the file says.
var punctuation = []string{"?", "-", ".", ":", ",", "!", ";", "_"}

// Analyzer tokenizes, filters and stems text into "<field>:<stem>"
// terms. It is pure after construction and safe for concurrent use.
type Analyzer struct {
	stop map[string]struct{}
}

// New builds an analyzer. stoplistPath is optional; when non-empty it
// names a plain-text file with one token per line; tokens are
// lowercased on load, so the file may use any case.
func New(stoplistPath string) (*Analyzer, error) {
	a := &Analyzer{stop: make(map[string]struct{})}
	for _, p := range punctuation {
		a.stop[p] = struct{}{}
	}
	if stoplistPath == "" {
		return a, nil
	}
	f, err := os.Open(stoplistPath)
	if err != nil {
		return nil, fmt.Errorf("analysis: open stoplist: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		word := strings.ToLower(strings.TrimSpace(sc.Text()))
		if word != "" {
			a.stop[word] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("analysis: read stoplist: %w", err)
	}
	return a, nil
}

// Analyze returns the ordered term sequence for one field of one
// document. Tokens shorter than 2 characters, non-ASCII, non-alphabetic
// or stoplisted are dropped; survivors are stemmed and field-qualified.
func (a *Analyzer) Analyze(text, field string) []string {
	words := tokenize(strings.ToLower(text))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if !a.keep(w) {
			continue
		}
		terms = append(terms, field+":"+english.Stem(w, true))
	}
	return terms
}

// AnalyzeQuery qualifies every query token against every requested
// field, so a one-word query over two fields yields two terms.
func (a *Analyzer) AnalyzeQuery(query string, fields []string) []string {
	words := tokenize(strings.ToLower(query))
	terms := make([]string, 0, len(words)*len(fields))
	for _, w := range words {
		if !a.keep(w) {
			continue
		}
		stem := english.Stem(w, true)
		for _, field := range fields {
			terms = append(terms, field+":"+stem)
		}
	}
	return terms
}

func (a *Analyzer) keep(w string) bool {
	if len(w) < 2 || !isASCIIAlpha(w) {
		return false
	}
	_, stopped := a.stop[w]
	return !stopped
}

// tokenize splits on maximal runs of word characters (letters, digits,
// underscore), mirroring a \w+ tokenizer.
func tokenize(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

// isWordRune matches \w: letters, digits, underscore. Non-ASCII
// letters tokenize normally and the ASCII filter drops the token after.
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCIIAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
