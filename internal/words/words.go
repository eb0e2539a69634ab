// internal/words/words.go
//
// Content store for the game: an ordered list of categories, each an ordered
// list of {word, hint}.
//
// Responsibilities:
//   - Load the content document from a file (WORDS_FILE) or fall back to the
//     embedded default (assets/categories.json).
//   - Normalize it: trim whitespace, drop empty entries, drop duplicate words
//     inside a category, reject duplicate category ids.
//   - Serve lookups by id from an immutable snapshot, and swap that snapshot
//     atomically on Reload so an editor can refresh content between games.
//
// Document format (the same one the browser editor exports):
//   {"categories": [{"id": "...", "name": "...", "icon": "...",
//                    "words": [{"word": "...", "hint": "..."}]}]}

package words

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Lunberg88/hd-elias/assets"
	"github.com/Lunberg88/hd-elias/internal/game"
)

// ErrNoCategories is returned when a document holds no usable category.
var ErrNoCategories = errors.New("words: no categories")

type document struct {
	Categories []game.Category `json:"categories"`
}

// Snapshot is one immutable version of the content. It implements game.Catalog.
type Snapshot struct {
	categories []game.Category
	byID       map[string]int
}

// FindCategory resolves id; a miss returns false.
func (s *Snapshot) FindCategory(id string) (game.Category, bool) {
	i, ok := s.byID[id]
	if !ok {
		return game.Category{}, false
	}
	return s.categories[i], true
}

// Categories returns the categories in document order. Callers must not modify them.
func (s *Snapshot) Categories() []game.Category { return s.categories }

// Stats returns (categories, words) counts.
func (s *Snapshot) Stats() (categoryCount int, wordCount int) {
	for _, c := range s.categories {
		wordCount += len(c.Words)
	}
	return len(s.categories), wordCount
}

// Library holds the current snapshot and knows where to reload it from.
type Library struct {
	path    string // empty means the embedded default
	current atomic.Pointer[Snapshot]
}

// Open loads content from path, or from the embedded default when path is empty.
func Open(path string) (*Library, error) {
	l := &Library{path: path}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// FromCategories builds a library around fixed content (tests, tools).
func FromCategories(cats []game.Category) (*Library, error) {
	snap, err := newSnapshot(cats)
	if err != nil {
		return nil, err
	}
	l := &Library{}
	l.current.Store(snap)
	return l, nil
}

// Reload re-reads the source and swaps the snapshot. On error the previous
// snapshot stays in place.
func (l *Library) Reload() error {
	raw, err := l.read()
	if err != nil {
		return err
	}
	cats, err := Parse(raw)
	if err != nil {
		return err
	}
	snap, err := newSnapshot(cats)
	if err != nil {
		return err
	}
	l.current.Store(snap)
	nc, nw := snap.Stats()
	log.Info().Str("source", l.source()).Int("categories", nc).Int("words", nw).Msg("word content loaded")
	return nil
}

// Replace swaps in already parsed content, e.g. an uploaded document.
func (l *Library) Replace(cats []game.Category) error {
	snap, err := newSnapshot(cats)
	if err != nil {
		return err
	}
	l.current.Store(snap)
	return nil
}

// Snapshot returns the current content version. Hold on to it for the
// duration of one transition so every lookup sees the same content.
func (l *Library) Snapshot() *Snapshot { return l.current.Load() }

func (l *Library) source() string {
	if l.path == "" {
		return "embedded"
	}
	return l.path
}

func (l *Library) read() ([]byte, error) {
	if l.path == "" {
		return assets.DefaultCategories()
	}
	b, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("words: read %s: %w", l.path, err)
	}
	return b, nil
}

// Parse decodes and normalizes a content document.
func Parse(raw []byte) ([]game.Category, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("words: parse: %w", err)
	}
	out := make([]game.Category, 0, len(doc.Categories))
	for _, c := range doc.Categories {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			continue
		}
		c.Name = strings.TrimSpace(c.Name)
		c.Icon = strings.TrimSpace(c.Icon)
		c.Words = normalizeWords(c.Words)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrNoCategories
	}
	return out, nil
}

// normalizeWords trims entries and keeps the first occurrence of each word.
func normalizeWords(in []game.Word) []game.Word {
	seen := make(map[string]struct{}, len(in))
	out := make([]game.Word, 0, len(in))
	for _, w := range in {
		w.Word = strings.TrimSpace(w.Word)
		w.Hint = strings.TrimSpace(w.Hint)
		if w.Word == "" {
			continue
		}
		if _, dup := seen[w.Word]; dup {
			continue
		}
		seen[w.Word] = struct{}{}
		out = append(out, w)
	}
	return out
}

func newSnapshot(cats []game.Category) (*Snapshot, error) {
	if len(cats) == 0 {
		return nil, ErrNoCategories
	}
	s := &Snapshot{categories: cats, byID: make(map[string]int, len(cats))}
	for i, c := range cats {
		if _, dup := s.byID[c.ID]; dup {
			return nil, fmt.Errorf("words: duplicate category id %q", c.ID)
		}
		s.byID[c.ID] = i
	}
	return s, nil
}
