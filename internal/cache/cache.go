package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/velasec/newsroom/internal/normalize"
)

// Article is a processed news item as persisted in the cache file. Title is
// the immutable identity key; RewrittenTitle equals Title when rewriting was
// skipped or failed.
type Article struct {
	Title          string `json:"title"`
	RewrittenTitle string `json:"rewrittenTitle"`
	Link           string `json:"link"`
	Source         string `json:"source"`
	Date           string `json:"date"`
	Description    string `json:"description"`
	Content        string `json:"content"`
	Category       string `json:"category"`
}

// File is the on-disk cache layout.
type File struct {
	Generated   []Article `json:"generated"`
	LastUpdated string    `json:"lastUpdated"`
}

// Store owns the in-memory article cache and its JSON file mirror. All
// mutation goes through Merge; everything else is read-only.
type Store struct {
	path string
	mu   sync.RWMutex
	file File
	now  func() time.Time
}

// New creates a Store backed by the JSON file at path. Call Load to pick up
// an existing file.
func New(path string) *Store {
	return &Store{
		path: path,
		file: File{LastUpdated: time.Now().UTC().Format(time.RFC3339)},
		now:  time.Now,
	}
}

// Load reads the cache file if present. A missing file is not an error; a
// corrupt one is reported but leaves the store empty, so the caller can log
// and carry on.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing cache file: %w", err)
	}

	s.mu.Lock()
	s.file.Generated = f.Generated
	if f.LastUpdated != "" {
		s.file.LastUpdated = f.LastUpdated
	}
	s.mu.Unlock()
	return nil
}

// Persist writes the whole cache file in a single write, creating the cache
// directory if needed.
func (s *Store) Persist() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.file, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Merge prepends fresh articles, enforcing the content validity gate and
// normalized-title uniqueness, then re-sorts newest first and stamps
// LastUpdated. It returns how many articles were actually admitted.
func (s *Store) Merge(fresh []Article) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.file.Generated))
	for _, a := range s.file.Generated {
		seen[normalize.Title(a.Title)] = struct{}{}
	}

	var admitted []Article
	for _, a := range fresh {
		if !ValidContent(a.Content) {
			continue
		}
		key := normalize.Title(a.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		admitted = append(admitted, a)
	}
	if len(admitted) == 0 {
		return 0
	}

	s.file.Generated = append(admitted, s.file.Generated...)
	sort.SliceStable(s.file.Generated, func(i, j int) bool {
		return ParseDate(s.file.Generated[i].Date).After(ParseDate(s.file.Generated[j].Date))
	})
	s.file.LastUpdated = s.now().UTC().Format(time.RFC3339)
	return len(admitted)
}

// Len returns the number of cached articles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.file.Generated)
}

// Articles returns a copy of the cached article list.
func (s *Store) Articles() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Article, len(s.file.Generated))
	copy(out, s.file.Generated)
	return out
}

// LastUpdated returns the raw LastUpdated stamp.
func (s *Store) LastUpdated() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.LastUpdated
}

// LastUpdatedTime returns the parsed LastUpdated stamp, zero when unparseable.
func (s *Store) LastUpdatedTime() time.Time {
	return ParseDate(s.LastUpdated())
}

// HasTitle reports whether an article with the same normalized title is
// already cached.
func (s *Store) HasTitle(title string) bool {
	key := normalize.Title(title)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.file.Generated {
		if normalize.Title(a.Title) == key {
			return true
		}
	}
	return false
}

// Find returns the cached article whose original title matches exactly.
func (s *Store) Find(title string) (Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.file.Generated {
		if a.Title == title {
			return a, true
		}
	}
	return Article{}, false
}

// FindFold is Find with case-insensitive matching.
func (s *Store) FindFold(title string) (Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.file.Generated {
		if strings.EqualFold(a.Title, title) {
			return a, true
		}
	}
	return Article{}, false
}

// ValidContent is the cache admission gate: an article body counts as real
// content only when it is longer than 100 characters and contains at least
// one paragraph tag.
func ValidContent(content string) bool {
	return len(content) > 100 && strings.Contains(content, "<p>")
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006, 03:04 PM, -0700 MST",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses an article date in any of the formats the providers emit.
// Unparseable dates (for example "hace 2 días") return the zero time, which
// sorts last.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
