package audit

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"qbank/internal/app/apiresp"
)

type lister interface {
	List(ctx context.Context, limit int) ([]Entry, error)
}

type Handler struct {
	log lister
}

func NewHandler(log *Log) *Handler {
	return &Handler{log: log}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apiresp.WriteError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.log.List(r.Context(), limit)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, items)
}
