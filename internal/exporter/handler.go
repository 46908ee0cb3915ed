package exporter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"qbank/internal/app/apiresp"
	"qbank/internal/audit"
	"qbank/internal/auth"
	"qbank/internal/question"
)

type selector interface {
	Select(ctx context.Context, req Request) ([]question.Question, error)
}

// Counter receives export counts per format.
type Counter interface {
	Add(name, label string, n int64)
}

type nopCounter struct{}

func (nopCounter) Add(string, string, int64) {}

type Handler struct {
	selector selector
	audit    audit.Sink
	counter  Counter
	encoders func(Format) (Encoder, error)
	now      func() time.Time
}

func NewHandler(sel *Selector, sink audit.Sink, counter Counter) *Handler {
	if sink == nil {
		sink = audit.Discard{}
	}
	if counter == nil {
		counter = nopCounter{}
	}
	return &Handler{selector: sel, audit: sink, counter: counter, encoders: ForFormat, now: time.Now}
}

// Export streams the requested questions as a file download. The document is
// fully encoded before any header is written.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.URL.Query())
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	enc, err := h.encoders(req.Format)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.selector.Select(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	body, err := enc.Encode(items, Options{IncludeAnswers: req.IncludeAnswers})
	if err != nil {
		slog.Error("export encoding failed", "format", req.Format, "count", len(items), "error", err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "export failed")
		return
	}

	var actorID int64
	if u, ok := auth.CurrentUser(r.Context()); ok {
		actorID = u.ID
	}
	h.counter.Add("export", string(req.Format), 1)
	h.audit.Record(r.Context(), audit.Entry{
		UserID:     audit.Actor(actorID),
		Action:     audit.ActionExportQuestions,
		EntityType: "question",
		Details:    "Exported " + strconv.Itoa(len(items)) + " questions as " + string(req.Format),
		Payload: map[string]any{
			"mode":            string(req.Mode),
			"format":          string(req.Format),
			"count":           len(items),
			"include_answers": req.IncludeAnswers,
		},
	})

	filename := Filename(req.Mode, enc, h.now().UTC())
	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
