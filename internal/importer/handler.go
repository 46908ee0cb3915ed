package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"qbank/internal/app/apiresp"
	"qbank/internal/auth"
	"qbank/internal/subject"
)

const defaultMaxUploadBytes = 10 << 20

type committer interface {
	Commit(ctx context.Context, actorID int64, drafts []Draft) (*CommitResult, error)
}

// Counter receives import volume counts.
type Counter interface {
	Add(name, label string, n int64)
}

type nopCounter struct{}

func (nopCounter) Add(string, string, int64) {}

type Handler struct {
	committer      committer
	counter        Counter
	maxUploadBytes int64
}

type HandlerConfig struct {
	MaxUploadBytes int64
	Counter        Counter
}

type previewRequest struct {
	RawText           string `json:"raw_text"`
	SubjectID         int64  `json:"subject_id"`
	CustomSubjectName string `json:"custom_subject_name"`
}

type editRequest struct {
	Drafts []Draft     `json:"drafts"`
	Edits  []fieldEdit `json:"edits"`
	Toggle []int       `json:"toggle"`
}

type fieldEdit struct {
	Index int    `json:"index"`
	Field Field  `json:"field"`
	Value string `json:"value"`
}

type confirmRequest struct {
	Drafts []Draft `json:"drafts"`
}

type previewResponse struct {
	Count       int     `json:"count"`
	CommitCount *int    `json:"commit_count,omitempty"`
	Drafts      []Draft `json:"drafts"`
}

func NewHandler(c *Committer, cfg HandlerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Counter == nil {
		cfg.Counter = nopCounter{}
	}
	return &Handler{committer: c, counter: cfg.Counter, maxUploadBytes: cfg.MaxUploadBytes}
}

// Preview parses pasted text or an uploaded text file. It succeeds even when
// every draft is invalid.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	req, status, msg := h.readPreviewRequest(w, r)
	if status != 0 {
		apiresp.WriteError(w, r, status, msg)
		return
	}

	ref := subject.FromRequest(req.SubjectID, req.CustomSubjectName)
	if ref.IsZero() {
		apiresp.WriteError(w, r, http.StatusBadRequest, "subject_id or custom_subject_name is required")
		return
	}
	if strings.TrimSpace(req.RawText) == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "raw_text is required")
		return
	}

	session := NewSession(Parse(req.RawText, ref))
	h.counter.Add("import_drafts", "parsed", int64(session.Len()))
	apiresp.WriteOK(w, r, http.StatusOK, previewResponse{Count: session.Len(), Drafts: session.Drafts()})
}

func (h *Handler) readPreviewRequest(w http.ResponseWriter, r *http.Request) (previewRequest, int, string) {
	var req previewRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		status, msg := h.decodeJSON(w, r, &req)
		return req, status, msg
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if tooLarge(err) {
			return req, http.StatusRequestEntityTooLarge, "upload too large"
		}
		return req, http.StatusBadRequest, "invalid multipart form"
	}
	if raw := strings.TrimSpace(r.FormValue("subject_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return req, http.StatusBadRequest, "subject_id must be positive"
		}
		req.SubjectID = id
	}
	req.CustomSubjectName = r.FormValue("custom_subject_name")

	f, _, err := r.FormFile("file")
	if err != nil {
		return req, http.StatusBadRequest, "file is required"
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return req, http.StatusBadRequest, "could not read file"
	}
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(b) {
		return req, http.StatusBadRequest, "file must be UTF-8 text"
	}
	req.RawText = strings.ReplaceAll(string(b), "\r\n", "\n")
	return req, 0, ""
}

// decodeJSON reads a size-limited JSON body. It returns a zero status on success.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (int, string) {
	limit := h.maxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(dst); err != nil {
		if tooLarge(err) {
			return http.StatusRequestEntityTooLarge, "request body too large"
		}
		return http.StatusBadRequest, "invalid request body"
	}
	return 0, ""
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// Edit applies field edits and exclusion toggles to the client's drafts and
// returns the re-validated list.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if status, msg := h.decodeJSON(w, r, &req); status != 0 {
		apiresp.WriteError(w, r, status, msg)
		return
	}

	session := NewSession(req.Drafts)
	for _, e := range req.Edits {
		if err := session.EditField(e.Index, e.Field, e.Value); err != nil {
			writeImportError(w, r, err)
			return
		}
	}
	for _, idx := range req.Toggle {
		if err := session.ToggleExclude(idx); err != nil {
			writeImportError(w, r, err)
			return
		}
	}

	commitCount := len(session.CommitSet())
	apiresp.WriteOK(w, r, http.StatusOK, previewResponse{
		Count:       session.Len(),
		CommitCount: &commitCount,
		Drafts:      session.Drafts(),
	})
}

// Confirm commits the included, valid drafts.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req confirmRequest
	if status, msg := h.decodeJSON(w, r, &req); status != 0 {
		apiresp.WriteError(w, r, status, msg)
		return
	}

	set := NewSession(req.Drafts).CommitSet()
	if len(set) == 0 {
		writeImportError(w, r, ErrNothingToImport)
		return
	}

	res, err := h.committer.Commit(r.Context(), user.ID, set)
	if err != nil {
		writeImportError(w, r, err)
		return
	}
	h.counter.Add("import_questions", "committed", int64(res.ImportedCount))
	apiresp.WriteOK(w, r, http.StatusCreated, res)
}

func writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	var resErr *SubjectResolutionError
	switch {
	case errors.As(err, &resErr):
		apiresp.Write(w, r, apiresp.AtRow(resErr.Index, "subject_unresolved", resErr.Error()))
	case errors.Is(err, ErrNothingToImport), errors.Is(err, ErrInvalidDraft):
		apiresp.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrIndexOutOfRange), errors.Is(err, ErrUnknownField), errors.Is(err, ErrInvalidValue):
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
	default:
		apiresp.Write(w, r, err)
	}
}
