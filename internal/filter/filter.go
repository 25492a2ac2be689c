// Package filter flags text containing blocked words.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// WordList matches whole words and multi-word phrases, ignoring case and
// punctuation.
type WordList struct {
	words   map[string]struct{}
	phrases []string
}

func New(words []string) *WordList {
	w := &WordList{words: make(map[string]struct{}, len(words))}
	for _, word := range words {
		w.add(word)
	}
	return w
}

// Load builds a list from words plus the lines of path. Blank lines and
// lines starting with # are ignored. An empty path is allowed.
func Load(words []string, path string) (*WordList, error) {
	w := New(words)
	if path == "" {
		return w, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	if err := w.read(f); err != nil {
		return nil, fmt.Errorf("read word list: %w", err)
	}
	return w, nil
}

func (w *WordList) read(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		w.add(line)
	}
	return scanner.Err()
}

func (w *WordList) add(raw string) {
	tokens := tokenize(raw)
	switch len(tokens) {
	case 0:
	case 1:
		w.words[tokens[0]] = struct{}{}
	default:
		w.phrases = append(w.phrases, " "+strings.Join(tokens, " ")+" ")
	}
}

func (w *WordList) Len() int {
	return len(w.words) + len(w.phrases)
}

func (w *WordList) IsProfane(text string) bool {
	tokens := tokenize(text)
	for _, t := range tokens {
		if _, ok := w.words[t]; ok {
			return true
		}
	}
	if len(w.phrases) == 0 {
		return false
	}

	joined := " " + strings.Join(tokens, " ") + " "
	for _, p := range w.phrases {
		if strings.Contains(joined, p) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
