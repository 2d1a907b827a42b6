package aggregate

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/velasec/newsroom/internal/cache"
	"github.com/velasec/newsroom/internal/classify"
	"github.com/velasec/newsroom/internal/feed"
	"github.com/velasec/newsroom/internal/normalize"
	"github.com/velasec/newsroom/internal/rewrite"
)

// ErrUnavailable is returned when a refresh fails and there is no cached news
// to fall back to. It is the only hard failure surfaced to callers.
var ErrUnavailable = errors.New("news unavailable: fetch failed and cache is empty")

// Fetcher supplies raw candidate articles.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Candidate, error)
}

// Rewriter produces rewritten article text, falling back to the original on
// failure.
type Rewriter interface {
	Rewrite(ctx context.Context, title, description, original string) (rewrite.Result, error)
}

// PageFetcher optionally retrieves full article content for directly cached
// candidates.
type PageFetcher interface {
	Content(ctx context.Context, url string) string
}

// Options tunes the aggregation pipeline.
type Options struct {
	StaleAfter   time.Duration // cache age that triggers a refresh
	ForceRefresh bool          // debug-only: treat every request as stale
	BatchSize    int           // candidates sent through the rewriter per cycle
	OutputCap    int           // maximum served list length
	FetchContent bool          // enrich direct-cache candidates via page fetch
}

// Aggregator drives the fetch, rewrite and cache pipeline and produces the
// served news list.
type Aggregator struct {
	store    *cache.Store
	fetcher  Fetcher
	rewriter Rewriter
	pages    PageFetcher
	opts     Options
	now      func() time.Time
	mu       sync.Mutex // serializes refresh cycles
}

// New creates an Aggregator. pages may be nil when content enrichment is
// disabled.
func New(store *cache.Store, fetcher Fetcher, rewriter Rewriter, pages PageFetcher, opts Options) *Aggregator {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 30 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.OutputCap <= 0 {
		opts.OutputCap = 15
	}
	return &Aggregator{
		store:    store,
		fetcher:  fetcher,
		rewriter: rewriter,
		pages:    pages,
		opts:     opts,
		now:      time.Now,
	}
}

// News serves the deduplicated news list, refreshing the cache first when it
// is stale. A failed refresh falls back to the existing cache; with an empty
// cache it returns ErrUnavailable.
func (a *Aggregator) News(ctx context.Context) ([]cache.Article, string, error) {
	if a.stale() {
		if err := a.Refresh(ctx); err != nil {
			if a.store.Len() > 0 {
				log.Printf("Refresh failed, serving stale cache: %v", err)
				return a.Output(), a.store.LastUpdated(), nil
			}
			log.Printf("Refresh failed with empty cache: %v", err)
			return nil, "", ErrUnavailable
		}
	}
	return a.Output(), a.store.LastUpdated(), nil
}

func (a *Aggregator) stale() bool {
	if a.opts.ForceRefresh {
		return true
	}
	if a.store.Len() == 0 {
		return true
	}
	last := a.store.LastUpdatedTime()
	return last.IsZero() || a.now().Sub(last) > a.opts.StaleAfter
}

// Refresh runs one full fetch and rewrite cycle. A provider
// failure is returned to the caller; a persistence failure is logged only,
// the in-memory cache stays updated either way.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidates, err := a.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		log.Printf("Provider returned no articles, keeping existing cache")
		return nil
	}

	fresh := a.filterNew(candidates)
	log.Printf("Fetched %d candidates, %d genuinely new", len(candidates), len(fresh))
	if len(fresh) == 0 {
		return nil
	}

	batch := fresh
	var rest []feed.Candidate
	if len(batch) > a.opts.BatchSize {
		rest = batch[a.opts.BatchSize:]
		batch = batch[:a.opts.BatchSize]
	}

	var admitted []cache.Article
	for _, c := range batch {
		if art, ok := a.rewriteCandidate(ctx, c); ok {
			admitted = append(admitted, art)
		}
	}
	for _, c := range rest {
		if art, ok := a.directCandidate(ctx, c); ok {
			admitted = append(admitted, art)
		}
	}

	if len(admitted) == 0 {
		log.Printf("No candidates survived processing and validation")
		return nil
	}

	n := a.store.Merge(admitted)
	if err := a.store.Persist(); err != nil {
		log.Printf("Failed to persist news cache: %v", err)
	}
	log.Printf("Cached %d new articles", n)
	return nil
}

// filterNew keeps only candidates whose normalized title is not already
// cached.
func (a *Aggregator) filterNew(candidates []feed.Candidate) []feed.Candidate {
	var fresh []feed.Candidate
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		key := normalize.Title(c.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		if a.store.HasTitle(c.Title) {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh
}

// rewriteCandidate runs one candidate through the rewriter and applies the
// admission gate. A rewrite failure degrades to original text; a gate failure
// drops the candidate.
func (a *Aggregator) rewriteCandidate(ctx context.Context, c feed.Candidate) (cache.Article, bool) {
	res, err := a.rewriter.Rewrite(ctx, c.Title, c.Description, c.Content)
	if err != nil {
		log.Printf("Rewrite degraded for %q: %v", c.Title, err)
	}

	art := cache.Article{
		Title:          c.Title,
		RewrittenTitle: res.Title,
		Link:           orDefault(c.Link, "#"),
		Source:         orDefault(c.Source, feed.UnknownSource),
		Date:           orDefault(c.Published, a.now().UTC().Format(time.RFC3339)),
		Description:    res.Summary,
		Content:        res.Content,
	}
	art.Category = classify.Categorize(art.Title, art.Description, art.Content)

	if !cache.ValidContent(art.Content) {
		log.Printf("Rejected %q: content failed the validity gate", c.Title)
		return cache.Article{}, false
	}
	return art, true
}

// directCandidate caches a candidate beyond the rewrite batch without
// rewriting. Only candidates whose own content already passes the gate (or
// can be enriched by a page fetch) survive.
func (a *Aggregator) directCandidate(ctx context.Context, c feed.Candidate) (cache.Article, bool) {
	content := c.Content
	if !cache.ValidContent(content) {
		content = ""
	}
	if content == "" && a.opts.FetchContent && a.pages != nil && c.Link != "" {
		if fetched := a.pages.Content(ctx, c.Link); cache.ValidContent(fetched) {
			content = fetched
		}
	}
	if content == "" {
		log.Printf("Rejected %q for direct caching: no valid content", c.Title)
		return cache.Article{}, false
	}

	art := cache.Article{
		Title:          c.Title,
		RewrittenTitle: c.Title,
		Link:           orDefault(c.Link, "#"),
		Source:         orDefault(c.Source, feed.UnknownSource),
		Date:           orDefault(c.Published, a.now().UTC().Format(time.RFC3339)),
		Description:    orDefault(c.Description, "Descripción no disponible."),
		Content:        content,
	}
	art.Category = classify.Categorize(art.Title, art.Description, art.Content)
	return art, true
}

// Output applies the serving filter: valid content only, newest first,
// same-day near-duplicate headlines collapsed, capped.
func (a *Aggregator) Output() []cache.Article {
	var valid []cache.Article
	for _, art := range a.store.Articles() {
		if cache.ValidContent(art.Content) {
			valid = append(valid, art)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return cache.ParseDate(valid[i].Date).After(cache.ParseDate(valid[j].Date))
	})

	var out []cache.Article
	for _, art := range valid {
		if isSameDayDuplicate(out, art) {
			continue
		}
		out = append(out, art)
		if len(out) >= a.opts.OutputCap {
			break
		}
	}
	return out
}

// isSameDayDuplicate reports whether kept already contains an article from
// the same calendar day sharing at least 60% of the candidate's normalized
// title words (counting only words longer than three characters as common).
func isSameDayDuplicate(kept []cache.Article, candidate cache.Article) bool {
	cDay := day(candidate.Date)
	cWords := wordSet(candidate.Title)
	for _, k := range kept {
		if day(k.Date) != cDay {
			continue
		}
		kWords := wordSet(k.Title)
		common := 0
		for w := range cWords {
			if _, ok := kWords[w]; ok && len(w) > 3 {
				common++
			}
		}
		size := len(cWords)
		if size == 0 {
			size = 1
		}
		if float64(common)/float64(size) >= 0.6 {
			return true
		}
	}
	return false
}

func wordSet(title string) map[string]struct{} {
	words := strings.Fields(normalize.ForDedup(title))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func day(date string) string {
	if i := strings.IndexByte(date, 'T'); i >= 0 {
		return date[:i]
	}
	return date
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
