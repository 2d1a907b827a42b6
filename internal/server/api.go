package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/velasec/newsroom/internal/aggregate"
	"github.com/velasec/newsroom/internal/cache"
)

var articleDocTmpl = template.Must(template.New("articleDoc").Parse(`<!DOCTYPE html>
<html>
  <head><title>{{.Title}}</title></head>
  <body>
    <h1>{{.Title}}</h1>
    {{.Body}}
  </body>
</html>
`))

// newsResponse is the payload for GET /api/news without a title.
type newsResponse struct {
	News        []cache.Article `json:"news"`
	LastUpdated string          `json:"lastUpdated"`
}

func (s *Server) handleNewsAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getNews(w, r)
	case http.MethodPost:
		s.postNews(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Método no permitido"))
	}
}

// getNews serves a single cached article when ?title= is present, otherwise
// the full served list, refreshing the cache first when it is stale.
func (s *Server) getNews(w http.ResponseWriter, r *http.Request) {
	if title := r.URL.Query().Get("title"); title != "" {
		article, ok := s.store.Find(title)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorBody("Artículo no encontrado"))
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "text/html") {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			err := articleDocTmpl.Execute(w, map[string]any{
				"Title": article.Title,
				"Body":  template.HTML(article.Content), //nolint: gosec
			})
			if err != nil {
				log.Printf("Error rendering article document: %v", err)
			}
			return
		}

		writeJSON(w, http.StatusOK, article)
		return
	}

	news, lastUpdated, err := s.news.News(r.Context())
	if err != nil {
		if errors.Is(err, aggregate.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable,
				errorBody("Service temporarily unavailable. Could not fetch news."))
			return
		}
		log.Printf("Error serving news: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("Error al procesar la solicitud"))
		return
	}
	writeJSON(w, http.StatusOK, newsResponse{News: news, LastUpdated: lastUpdated})
}

// postNews synthesizes a minimal article record from a title and description.
// The record is returned to the caller but never persisted.
func (s *Server) postNews(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("Error al generar artículo"))
		return
	}
	if req.Title == "" || req.Description == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("Título y descripción son requeridos"))
		return
	}

	article := cache.Article{
		Title:       req.Title,
		Link:        "#" + strings.ToLower(strings.ReplaceAll(req.Title, " ", "-")),
		Source:      "Generated Content",
		Date:        time.Now().UTC().Format(time.RFC3339),
		Description: req.Description,
		Content:     "<p>Contenido detallado sobre el artículo...</p>",
	}
	writeJSON(w, http.StatusCreated, article)
}

// handleArticleAPI looks an article up by title, case-insensitively.
func (s *Server) handleArticleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Método no permitido"))
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("El parámetro title es requerido"))
		return
	}

	article, ok := s.store.FindFold(title)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("Artículo no encontrado"))
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
