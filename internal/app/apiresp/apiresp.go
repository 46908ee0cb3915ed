// Package apiresp writes the JSON envelope shared by every admin endpoint.
package apiresp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Row is the zero-based draft index an import failure refers to.
	Row *int `json:"row,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

type Envelope struct {
	OK    bool          `json:"ok"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
	Meta  Meta          `json:"meta"`
}

// Error is a handler failure with its HTTP status. Code defaults to one
// derived from Status when empty.
type Error struct {
	Status  int
	Code    string
	Message string
	Row     *int
}

func (e *Error) Error() string { return e.Message }

// AtRow returns an unprocessable error tied to one draft row.
func AtRow(row int, code, msg string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: code, Message: msg, Row: &row}
}

func WriteOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	render(w, status, Envelope{OK: true, Data: data, Meta: metaFor(r)})
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	Write(w, r, &Error{Status: status, Message: msg})
}

// Write renders err as an error envelope. Errors that are not an *Error are
// logged and reported as a bare 500.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !errors.As(err, &e) {
		slog.Error("unhandled request error", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		e = &Error{Status: http.StatusInternalServerError}
	}
	p := &ErrorPayload{Code: e.Code, Message: e.Message, Row: e.Row}
	if p.Code == "" {
		p.Code = codeFromStatus(e.Status)
	}
	if p.Message == "" {
		p.Message = http.StatusText(e.Status)
	}
	render(w, e.Status, Envelope{Error: p, Meta: metaFor(r)})
}

func metaFor(r *http.Request) Meta {
	return Meta{RequestID: middleware.GetReqID(r.Context())}
}

func render(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return "error"
	}
}
