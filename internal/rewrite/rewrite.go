package rewrite

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/velasec/newsroom/internal/ratelimit"
	"github.com/velasec/newsroom/internal/retry"
)

const (
	titleSystemPrompt = "Eres un asistente de IA especializado en periodismo y titulares."
	bodySystemPrompt  = "Eres un experto en ciberseguridad y redactor de contenido."

	titlePromptFormat = `Reescribe el siguiente titular de noticia para que sea más atractivo y conciso, manteniendo el significado original y el idioma: %q`

	bodyPromptFormat = `Eres un experto en ciberseguridad. Dada la siguiente noticia (título y descripción originales), genera un resumen conciso (máximo 3-4 frases) para la clave 'rewritten_summary'. Luego, para la clave 'rewritten_content', genera un contenido ampliado y detallado (mínimo 300 palabras) que explique la noticia en profundidad, sus implicaciones y contexto. IMPORTANTE: El valor de 'rewritten_content' DEBE ser una cadena de texto que contenga HTML, con el contenido principal estructurado en párrafos usando etiquetas <p> (por ejemplo, "<p>Esto es un párrafo.</p><p>Esto es otro párrafo.</p>"). Devuelve toda la respuesta en un único objeto JSON con las claves 'rewritten_summary' y 'rewritten_content'. Título Original: %s. Descripción Original: %s.`

	// NoSummary and NotAvailable are the explicit placeholders for articles
	// where nothing usable was produced. NotAvailable is short on purpose:
	// it fails the cache admission gate, so placeholder bodies are never
	// persisted.
	NoSummary    = "Resumen no disponible."
	NotAvailable = "Contenido completo no disponible."
)

// RewriteError reports a text generation failure after retries, or an
// unparseable response. The accompanying Result still carries usable fallback
// text; the error exists so callers can log the degradation.
type RewriteError struct {
	Stage string // "title" or "content"
	Err   error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewriting %s: %v", e.Stage, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

// Result is the output of one article rewrite.
type Result struct {
	Title   string // rewritten headline, or the original on failure
	Summary string // 3-4 sentence summary
	Content string // expanded HTML body, never empty
}

// Rewriter turns a raw title/description into a rewritten headline, a short
// summary and an expanded HTML body via two sequential, individually
// rate-limited provider calls.
type Rewriter struct {
	provider Provider
	limiter  *ratelimit.Limiter
	attempts int
	backoff  time.Duration
}

// New creates a Rewriter. Every provider call goes through limiter and is
// retried up to three times with linearly increasing backoff.
func New(provider Provider, limiter *ratelimit.Limiter) *Rewriter {
	return &Rewriter{
		provider: provider,
		limiter:  limiter,
		attempts: 3,
		backoff:  time.Second,
	}
}

// call wraps one provider call with the rate limiter and the retry policy.
func (rw *Rewriter) call(ctx context.Context, system, user string) (string, error) {
	if err := rw.limiter.Acquire(ctx); err != nil {
		return "", err
	}
	defer rw.limiter.Release()

	var out string
	err := retry.Do(ctx, rw.attempts, rw.backoff, func() error {
		text, err := rw.provider.Chat(ctx, system, user)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// Rewrite processes one article. It always returns a usable Result: on any
// provider failure the original text is kept, and a RewriteError is returned
// alongside so the caller can log it. The batch is never aborted from here.
func (rw *Rewriter) Rewrite(ctx context.Context, title, description, original string) (Result, error) {
	res := Result{Title: title, Summary: description, Content: original}
	if res.Summary == "" {
		res.Summary = NoSummary
	}
	if res.Content == "" {
		res.Content = description
	}

	var firstErr error

	text, err := rw.call(ctx, titleSystemPrompt, fmt.Sprintf(titlePromptFormat, title))
	if err != nil {
		firstErr = &RewriteError{Stage: "title", Err: err}
		log.Printf("Title rewrite failed for %q: %v", title, err)
	} else if cleaned := stripControl(text); cleaned != "" {
		res.Title = cleaned
	}

	desc := description
	if desc == "" {
		desc = "No disponible"
	}
	text, err = rw.call(ctx, bodySystemPrompt, fmt.Sprintf(bodyPromptFormat, title, desc))
	if err != nil {
		if firstErr == nil {
			firstErr = &RewriteError{Stage: "content", Err: err}
		}
		log.Printf("Content rewrite failed for %q: %v", title, err)
	} else if parsed := decodeRewriteResponse(text); parsed != nil {
		if s := stripControl(parsed.Summary); s != "" {
			res.Summary = s
		}
		if c := stripControl(parsed.Content); c != "" {
			res.Content = c
		} else {
			log.Printf("Empty rewritten content for %q, keeping original text", title)
		}
	} else {
		if firstErr == nil {
			firstErr = &RewriteError{Stage: "content", Err: fmt.Errorf("unparseable response")}
		}
	}

	if strings.TrimSpace(res.Content) == "" {
		res.Content = NotAvailable
	}
	return res, firstErr
}
