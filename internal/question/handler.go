package question

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"qbank/internal/app/apiresp"
	"qbank/internal/auth"
	"qbank/internal/subject"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc questionService
}

type questionService interface {
	Create(ctx context.Context, actorID int64, in CreateInput) (*Question, error)
	Get(ctx context.Context, id int64) (*Question, error)
	List(ctx context.Context, in ListQuery) (*Page, error)
	Delete(ctx context.Context, actorID, id int64) error
	Move(ctx context.Context, actorID, id int64, ref subject.Ref) (*Question, error)
	BulkMove(ctx context.Context, actorID int64, ids []int64, ref subject.Ref) (*BulkMoveResult, error)
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createQuestionRequest struct {
	Text              string   `json:"text"`
	Options           []string `json:"options"`
	CorrectOption     int      `json:"correct_option"`
	Difficulty        string   `json:"difficulty"`
	SubjectID         int64    `json:"subject_id"`
	CustomSubjectName string   `json:"custom_subject_name"`
}

type moveQuestionRequest struct {
	SubjectID         int64  `json:"subject_id"`
	CustomSubjectName string `json:"custom_subject_name"`
}

type bulkMoveRequest struct {
	IDs               []int64 `json:"ids"`
	SubjectID         int64   `json:"subject_id"`
	CustomSubjectName string  `json:"custom_subject_name"`
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	in := ListQuery{Search: q.Get("search")}
	if raw := strings.TrimSpace(q.Get("subject_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "subject_id must be positive"})
			return
		}
		in.SubjectID = id
	}
	d, ok := ParseDifficulty(q.Get("difficulty"))
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "difficulty must be easy, medium or hard"})
		return
	}
	in.Difficulty = d
	sortBy, ok := ParseSort(q.Get("sort"))
	if !ok {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "sort must be newest, oldest, difficulty or subject"})
		return
	}
	in.Sort = sortBy
	in.Page = parseIntDefault(q.Get("page"), 1)
	in.Limit = parseIntDefault(q.Get("limit"), defaultPageLimit)

	page, err := h.svc.List(r.Context(), in)
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: page})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.Create(r.Context(), user.ID, CreateInput{
		Text:          req.Text,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		Difficulty:    Difficulty(req.Difficulty),
		Subject:       subject.FromRequest(req.SubjectID, req.CustomSubjectName),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: item})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: map[string]any{"deleted": true, "id": id}})
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req moveQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}

	item, err := h.svc.Move(r.Context(), user.ID, id, subject.FromRequest(req.SubjectID, req.CustomSubjectName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: item})
}

func (h *Handler) BulkMove(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, apiResponse{OK: false, Error: "unauthorized"})
		return
	}

	var req bulkMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "ids are required"})
		return
	}

	res, err := h.svc.BulkMove(r.Context(), user.ID, req.IDs, subject.FromRequest(req.SubjectID, req.CustomSubjectName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: res})
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, subject.ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, ErrQuestionNotFound), errors.Is(err, subject.ErrSubjectNotFound):
		writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, subject.ErrSubjectConflict):
		writeJSON(w, r, http.StatusConflict, apiResponse{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid question id"})
		return 0, false
	}
	return id, true
}

func parseIntDefault(raw string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
