package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const serpAPIBaseURL = "https://serpapi.com/search.json"

// DefaultQuery is the boolean keyword query sent to the news provider:
// cybersecurity incident terms OR-ed together, with marketing, course and
// advertisement terms excluded.
const DefaultQuery = `"ciberataque" OR "ataque informático" OR "brecha de datos" OR "vulnerabilidad crítica" OR "exploit" OR "zero-day" OR "CVE" OR "APT" OR "amenaza persistente" OR "phishing" OR "malware" OR "spyware" OR "rootkit" OR "troyano" OR "software malicioso" OR "ataque DDoS" OR "intrusión" OR "ingeniería social" OR "campaña de ciberataques" OR "incidente de seguridad" OR "grupo de amenaza" OR "actor malicioso" OR "ciberespionaje" OR "ciberterrorismo" OR "ciberguerra" OR "cyberattack" OR "data breach" OR "security incident" -curso -formación -aprende -tutorial -producto -comprar -tienda -oferta -descuento -publicidad -anuncio -reviews -opiniones -análisis -promoción -seminario -certificación -ebook -libro -podcast -evento -guía -manual`

// UnknownSource is used when the provider cannot name a publisher.
const UnknownSource = "Desconocido"

// Candidate is a raw article from an external source, not yet validated or
// rewritten.
type Candidate struct {
	Title       string
	Link        string
	Description string
	Published   string // provider's raw date text, may not be machine-readable
	Source      string
	Content     string // full body when the source carries one (RSS)
	ImageURL    string
}

// FetchError is a provider HTTP failure or a provider-reported error payload.
// It is a hard failure for the refresh cycle; callers fall back to the cache.
type FetchError struct {
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("news provider returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("news provider error: %s", e.Body)
}

// SerpAPIClient queries SerpApi's Google News engine for candidate articles.
type SerpAPIClient struct {
	apiKey   string
	query    string
	language string
	country  string
	count    int
	baseURL  string
	client   *http.Client
}

// NewSerpAPIClient creates a client reading its key from the environment
// variable named by apiKeyEnv. A missing key surfaces as an error from Fetch,
// not here.
func NewSerpAPIClient(apiKeyEnv, query, language, country string, count int) *SerpAPIClient {
	if query == "" {
		query = DefaultQuery
	}
	if language == "" {
		language = "es"
	}
	if country == "" {
		country = "ES"
	}
	if count <= 0 {
		count = 70
	}
	return &SerpAPIClient{
		apiKey:   os.Getenv(apiKeyEnv),
		query:    query,
		language: language,
		country:  country,
		count:    count,
		baseURL:  serpAPIBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *SerpAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Fetch runs one provider query and maps the results into Candidates.
func (c *SerpAPIClient) Fetch(ctx context.Context) ([]Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("news provider API key is not configured")
	}

	params := url.Values{
		"engine":  {"google_news"},
		"q":       {c.query},
		"hl":      {c.language},
		"gl":      {c.country},
		"lr":      {"lang_" + c.language},
		"num":     {strconv.Itoa(c.count)},
		"api_key": {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating provider request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &FetchError{Status: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		Error       string `json:"error"`
		NewsResults []struct {
			Title     string          `json:"title"`
			Link      string          `json:"link"`
			Snippet   string          `json:"snippet"`
			Date      string          `json:"date"`
			Source    json.RawMessage `json:"source"`
			Thumbnail string          `json:"thumbnail"`
		} `json:"news_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &FetchError{Body: fmt.Sprintf("decoding provider response: %v", err)}
	}
	if result.Error != "" {
		return nil, &FetchError{Body: result.Error}
	}

	var candidates []Candidate
	for _, item := range result.NewsResults {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Description: item.Snippet,
			Published:   item.Date,
			Source:      sourceName(item.Source),
			ImageURL:    item.Thumbnail,
		})
	}

	log.Printf("Fetched %d candidate articles from news provider", len(candidates))
	return candidates, nil
}

// sourceName normalizes the provider's source field, which may arrive as a
// plain string or as an object with name/title keys.
func sourceName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return UnknownSource
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return UnknownSource
	}

	var obj struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Name != "" {
			return obj.Name
		}
		if obj.Title != "" {
			return obj.Title
		}
	}
	return UnknownSource
}
