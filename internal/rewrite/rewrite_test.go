package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/velasec/newsroom/internal/ratelimit"
)

// scriptedProvider returns one canned response (or error) per call, in order.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
	systems   []string
	users     []string
}

func (p *scriptedProvider) Chat(_ context.Context, system, user string) (string, error) {
	i := p.calls
	p.calls++
	p.systems = append(p.systems, system)
	p.users = append(p.users, user)
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (p *scriptedProvider) IsConfigured() bool { return true }

func newTestRewriter(p Provider) *Rewriter {
	rw := New(p, ratelimit.New(2, 0))
	rw.backoff = time.Millisecond
	return rw
}

const longBody = `{"rewritten_summary": "Un resumen claro del incidente.", "rewritten_content": "<p>Primer párrafo con el detalle completo del incidente y su alcance en los sistemas afectados.</p><p>Segundo párrafo con contexto.</p>"}`

func TestRewriteSuccess(t *testing.T) {
	p := &scriptedProvider{responses: []string{"Titular mejorado", longBody}}
	rw := newTestRewriter(p)

	res, err := rw.Rewrite(context.Background(), "Titular original", "Descripción original", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "Titular mejorado" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Summary != "Un resumen claro del incidente." {
		t.Errorf("summary = %q", res.Summary)
	}
	if !strings.Contains(res.Content, "<p>Primer párrafo") {
		t.Errorf("content = %q", res.Content)
	}
	if p.calls != 2 {
		t.Errorf("expected 2 provider calls, got %d", p.calls)
	}

	// Both calls carry the original title; the second also carries the
	// description.
	if !strings.Contains(p.users[0], "Titular original") {
		t.Error("title prompt missing original headline")
	}
	if !strings.Contains(p.users[1], "Descripción original") {
		t.Error("content prompt missing original description")
	}
}

func TestRewriteTitleFailureKeepsOriginal(t *testing.T) {
	p := &scriptedProvider{
		errs:      []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), nil},
		responses: []string{"", "", "", longBody},
	}
	rw := newTestRewriter(p)

	res, err := rw.Rewrite(context.Background(), "Titular original", "Descripción", "")
	if res.Title != "Titular original" {
		t.Errorf("expected original title kept, got %q", res.Title)
	}
	if res.Summary != "Un resumen claro del incidente." {
		t.Errorf("expected rewritten summary despite title failure, got %q", res.Summary)
	}

	var rwe *RewriteError
	if !errors.As(err, &rwe) {
		t.Fatalf("expected RewriteError, got %v", err)
	}
	if rwe.Stage != "title" {
		t.Errorf("expected title stage, got %q", rwe.Stage)
	}
}

func TestRewriteUnparseableContent(t *testing.T) {
	p := &scriptedProvider{responses: []string{"Titular mejorado", "esto no es JSON"}}
	rw := newTestRewriter(p)

	res, err := rw.Rewrite(context.Background(), "Titular", "Descripción", "<p>cuerpo original</p>")
	if res.Content != "<p>cuerpo original</p>" {
		t.Errorf("expected original content kept, got %q", res.Content)
	}
	if res.Summary != "Descripción" {
		t.Errorf("expected original description kept, got %q", res.Summary)
	}

	var rwe *RewriteError
	if !errors.As(err, &rwe) {
		t.Fatalf("expected RewriteError, got %v", err)
	}
	if rwe.Stage != "content" {
		t.Errorf("expected content stage, got %q", rwe.Stage)
	}
}

func TestRewriteEmptyContentInResponse(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"Titular",
		`{"rewritten_summary": "resumen", "rewritten_content": ""}`,
	}}
	rw := newTestRewriter(p)

	res, _ := rw.Rewrite(context.Background(), "Titular", "Descripción", "<p>original</p>")
	if res.Content != "<p>original</p>" {
		t.Errorf("expected original content on empty rewrite, got %q", res.Content)
	}
	if res.Summary != "resumen" {
		t.Errorf("expected rewritten summary, got %q", res.Summary)
	}
}

func TestRewriteAllEmptyFallsToPlaceholders(t *testing.T) {
	fail := errors.New("down")
	p := &scriptedProvider{errs: []error{fail, fail, fail, fail, fail, fail}}
	rw := newTestRewriter(p)

	res, err := rw.Rewrite(context.Background(), "Titular", "", "")
	if err == nil {
		t.Fatal("expected degradation error")
	}
	if res.Title != "Titular" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Summary != NoSummary {
		t.Errorf("expected %q, got %q", NoSummary, res.Summary)
	}
	if res.Content != NotAvailable {
		t.Errorf("expected %q, got %q", NotAvailable, res.Content)
	}
	// The placeholder body must never survive the cache admission gate.
	if len(NotAvailable) > 100 {
		t.Error("placeholder content is long enough to be cached")
	}
}

func TestRewriteRetries(t *testing.T) {
	p := &scriptedProvider{
		errs:      []error{errors.New("flaky"), nil, nil},
		responses: []string{"", "Titular mejorado", longBody},
	}
	rw := newTestRewriter(p)

	res, err := rw.Rewrite(context.Background(), "Titular", "Descripción", "")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if res.Title != "Titular mejorado" {
		t.Errorf("title = %q", res.Title)
	}
	if p.calls != 3 {
		t.Errorf("expected 3 provider calls (1 retry), got %d", p.calls)
	}
}

func TestRewriteReleasesLimiter(t *testing.T) {
	limiter := ratelimit.New(2, 0)
	p := &scriptedProvider{responses: []string{"t", longBody}}
	rw := New(p, limiter)
	rw.backoff = time.Millisecond

	if _, err := rw.Rewrite(context.Background(), "Titular", "d", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.InFlight() != 0 {
		t.Errorf("expected all slots released, %d still held", limiter.InFlight())
	}
}

func TestPromptsAreSpanish(t *testing.T) {
	p := &scriptedProvider{responses: []string{"t", longBody}}
	rw := newTestRewriter(p)
	rw.Rewrite(context.Background(), "Titular", "", "")

	if !strings.Contains(p.users[1], "No disponible") {
		t.Error("empty description should be sent as 'No disponible'")
	}
	if !strings.Contains(p.users[1], "rewritten_summary") {
		t.Error("content prompt must request the JSON keys")
	}
	for _, sys := range p.systems {
		if sys == "" {
			t.Error("system prompt must not be empty")
		}
	}
}
