package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"qbank/internal/auth"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

type counterKey struct {
	Name  string
	Label string
}

type Collector struct {
	db     *sql.DB
	logger *slog.Logger

	mu           sync.RWMutex
	requestStats map[key]stat
	counters     map[counterKey]int64
	startedAt    time.Time
}

func NewCollector(db *sql.DB, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		db:           db,
		logger:       logger,
		requestStats: make(map[key]stat),
		counters:     make(map[counterKey]int64),
		startedAt:    time.Now(),
	}
}

// Add bumps a domain counter, exposed as qbank_<name>_total{label="..."}.
func (c *Collector) Add(name, label string, n int64) {
	c.mu.Lock()
	c.counters[counterKey{Name: name, Label: label}] += n
	c.mu.Unlock()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type callerKey struct{}

// CaptureUser records the authenticated caller so the request log line can
// name it. Mount it after auth.RequireAuth.
func (c *Collector) CaptureUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(callerKey{}).(*int64); ok {
			if u, ok := auth.CurrentUser(r.Context()); ok {
				*slot = u.ID
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		var userID int64
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), callerKey{}, &userID)))

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		c.logger.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"user_id", userID,
			"method", r.Method,
			"path", path,
			"status", rec.status,
			"latency_ms", latencyMS,
			"remote_ip", strings.TrimSpace(r.RemoteAddr),
		)
	})
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	countersCopy := make(map[counterKey]int64, len(c.counters))
	for k, v := range c.counters {
		countersCopy[k] = v
	}
	startedAt := c.startedAt
	c.mu.RUnlock()

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# qbank observability metrics\n")
	sb.WriteString("# TYPE qbank_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("qbank_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	sb.WriteString("# TYPE qbank_http_requests_total counter\n")
	sb.WriteString("# TYPE qbank_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE qbank_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		sb.WriteString(fmt.Sprintf("qbank_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("qbank_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		sb.WriteString(fmt.Sprintf("qbank_http_request_latency_ms_avg{%s} %.3f\n", labels, avg))
	}

	writeCounters(&sb, countersCopy)

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE qbank_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("qbank_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE qbank_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("qbank_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE qbank_db_wait_count counter\n")
		sb.WriteString(fmt.Sprintf("qbank_db_wait_count %d\n", dbs.WaitCount))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func writeCounters(sb *strings.Builder, counters map[counterKey]int64) {
	keys := make([]counterKey, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Label < keys[j].Label
	})

	last := ""
	for _, k := range keys {
		metric := "qbank_" + k.Name + "_total"
		if metric != last {
			sb.WriteString("# TYPE " + metric + " counter\n")
			last = metric
		}
		sb.WriteString(fmt.Sprintf("%s{label=\"%s\"} %d\n", metric, k.Label, counters[k]))
	}
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
