package apiresp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteErrorEnvelope(t *testing.T) {
	tests := []struct {
		status int
		msg    string
		code   string
		want   string
	}{
		{http.StatusUnprocessableEntity, "row 3: subject not found", "unprocessable_entity", "row 3: subject not found"},
		{http.StatusRequestEntityTooLarge, "", "payload_too_large", "Request Entity Too Large"},
		{http.StatusTeapot, "", "error", "I'm a teapot"},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), tc.status, tc.msg)

		var env Envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if w.Code != tc.status || env.OK || env.Error == nil {
			t.Fatalf("unexpected envelope %+v", env)
		}
		if env.Error.Code != tc.code || env.Error.Message != tc.want {
			t.Fatalf("status %d: got %+v", tc.status, env.Error)
		}
	}
}

func TestWriteOKOmitsError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteOK(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]int{"imported_count": 2})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["error"]; ok {
		t.Fatalf("error must be omitted on success: %s", w.Body.String())
	}
	if string(raw["data"]) != `{"imported_count":2}` {
		t.Fatalf("unexpected data %s", raw["data"])
	}
}

func TestWriteCarriesCodeAndRow(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, httptest.NewRequest(http.MethodPost, "/", nil), AtRow(2, "subject_unresolved", "row 3: subject id:9 does not exist"))

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusUnprocessableEntity || env.Error == nil {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if env.Error.Code != "subject_unresolved" || env.Error.Row == nil || *env.Error.Row != 2 {
		t.Fatalf("unexpected error payload %+v", env.Error)
	}
}

func TestWriteHidesUnknownErrors(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: connection refused"))

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusInternalServerError || env.Error == nil {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if env.Error.Code != "internal_error" || env.Error.Message != "Internal Server Error" {
		t.Fatalf("unexpected error payload %+v", env.Error)
	}
	if env.Error.Row != nil {
		t.Fatalf("row must be omitted")
	}
}
