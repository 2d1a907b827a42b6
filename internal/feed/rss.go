package feed

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxPerFeed = 20

// FeedConfig represents a single RSS/Atom feed source.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedParser collects supplementary candidates from RSS/Atom feeds. Feed
// failures are logged and skipped; they never fail a refresh cycle.
type FeedParser struct {
	feeds []FeedConfig
}

// NewFeedParser creates a FeedParser for the given feeds.
func NewFeedParser(feeds []FeedConfig) *FeedParser {
	return &FeedParser{feeds: feeds}
}

// ParseAll parses every configured feed and returns the entries as Candidates.
func (fp *FeedParser) ParseAll(ctx context.Context) []Candidate {
	parser := gofeed.NewParser()

	var all []Candidate
	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		f, err := parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		count := 0
		for _, item := range f.Items {
			if count >= maxPerFeed {
				break
			}
			c := feedCandidate(item, name)
			if c == nil {
				continue
			}
			all = append(all, *c)
			count++
		}
		log.Printf("Parsed %d entries from %s", count, name)
	}

	return all
}

func feedCandidate(item *gofeed.Item, source string) *Candidate {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return nil
	}

	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC().Format(time.RFC3339)
	} else {
		published = item.Published
	}

	return &Candidate{
		Title:       title,
		Link:        link,
		Description: stripHTML(item.Description),
		Published:   published,
		Source:      source,
		Content:     item.Content,
	}
}

func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return feedURL
	}

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

// Sources combines the primary news provider with optional supplementary
// feeds. Only the primary's failure is fatal to a fetch.
type Sources struct {
	Provider *SerpAPIClient
	Feeds    *FeedParser
}

// Fetch queries the provider, then appends feed candidates.
func (s *Sources) Fetch(ctx context.Context) ([]Candidate, error) {
	candidates, err := s.Provider.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if s.Feeds != nil {
		candidates = append(candidates, s.Feeds.ParseAll(ctx)...)
	}
	return candidates, nil
}
