package observability

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"qbank/internal/auth"
)

func TestNormalizedPath(t *testing.T) {
	got := normalizedPath("/api/v1/admin/questions/123/subject")
	want := "/api/v1/admin/questions/{id}/subject"
	if got != want {
		t.Fatalf("normalizedPath mismatch got=%s want=%s", got, want)
	}
}

func TestMetricsIncludeDomainCounters(t *testing.T) {
	c := NewCollector(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.Add("export", "pdf", 1)
	c.Add("export", "pdf", 2)
	c.Add("export", "csv", 1)
	c.Add("import_questions", "committed", 12)

	w := httptest.NewRecorder()
	c.MetricsHandler(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	for _, want := range []string{
		`qbank_export_total{label="csv"} 1`,
		`qbank_export_total{label="pdf"} 3`,
		`qbank_import_questions_total{label="committed"} 12`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Count(body, "# TYPE qbank_export_total counter") != 1 {
		t.Fatalf("expected a single TYPE line per counter")
	}
}

func TestMiddlewareLogsCaller(t *testing.T) {
	var buf bytes.Buffer
	c := NewCollector(nil, slog.New(slog.NewTextHandler(&buf, nil)))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	authed := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: 42})))
		})
	}
	h := c.Middleware(authed(c.CaptureUser(inner)))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/admin/import/confirm", nil))

	line := buf.String()
	if !strings.Contains(line, "user_id=42") || !strings.Contains(line, "status=201") {
		t.Fatalf("unexpected log line %q", line)
	}
}
