package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/velasec/newsroom/internal/cache"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

//go:embed legal/*.md
var legalFS embed.FS

var md = goldmark.New()

// NewsService is the aggregation pipeline as seen by the HTTP layer.
type NewsService interface {
	// News refreshes the cache when stale and returns the served list.
	News(ctx context.Context) ([]cache.Article, string, error)
	// Output returns the served list from the current cache, no refresh.
	Output() []cache.Article
}

// Server is the HTTP server for the consultancy site and its news API.
type Server struct {
	store *cache.Store
	news  NewsService
	pages map[string]*template.Template
	legal map[string]template.HTML
	mux   *http.ServeMux
}

// New creates a new Server.
func New(store *cache.Store, news NewsService) (*Server, error) {
	funcMap := template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) }, //nolint: gosec
		"day": func(date string) string {
			if i := strings.IndexByte(date, 'T'); i >= 0 {
				return date[:i]
			}
			return date
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of the base so every page owns its
	// {{define "content"}} and {{define "title"}}.
	pageNames := []string{
		"index.html", "news.html", "article.html",
		"about.html", "solutions.html", "contact.html", "legal.html",
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	legal, err := renderLegalPages()
	if err != nil {
		return nil, err
	}

	s := &Server{store: store, news: news, pages: pages, legal: legal, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/api/news", s.handleNewsAPI)
	s.mux.HandleFunc("/api/article", s.handleArticleAPI)

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/news", s.handleNews)
	s.mux.HandleFunc("/article", s.handleArticle)
	s.mux.HandleFunc("/about", s.handlePage("about.html"))
	s.mux.HandleFunc("/solutions", s.handlePage("solutions.html"))
	s.mux.HandleFunc("/contact", s.handlePage("contact.html"))
	s.mux.HandleFunc("/legal/", s.handleLegal)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	latest := s.news.Output()
	if len(latest) > 3 {
		latest = latest[:3]
	}
	s.render(w, "index.html", map[string]any{
		"Latest": latest,
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	s.render(w, "news.html", map[string]any{
		"News":        s.news.Output(),
		"LastUpdated": s.store.LastUpdated(),
	})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		http.Redirect(w, r, "/news", http.StatusFound)
		return
	}

	article, ok := s.store.FindFold(title)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, "article.html", map[string]any{
		"Article": article,
	})
}

func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, name, nil)
	}
}

func (s *Server) handleLegal(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/legal/")
	body, ok := s.legal[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, "legal.html", map[string]any{
		"Body": body,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

// renderLegalPages converts the embedded legal markdown documents to HTML
// once at startup.
func renderLegalPages() (map[string]template.HTML, error) {
	entries, err := legalFS.ReadDir("legal")
	if err != nil {
		return nil, fmt.Errorf("reading legal documents: %w", err)
	}

	out := make(map[string]template.HTML, len(entries))
	for _, e := range entries {
		data, err := legalFS.ReadFile("legal/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		var buf bytes.Buffer
		if err := md.Convert(data, &buf); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", e.Name(), err)
		}
		key := strings.TrimSuffix(e.Name(), ".md")
		out[key] = template.HTML(buf.String()) //nolint: gosec
	}
	return out, nil
}

// Serve starts the HTTP server on the given port.
func Serve(store *cache.Store, news NewsService, port int) error {
	srv, err := New(store, news)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Server listening on http://localhost%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
