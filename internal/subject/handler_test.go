package subject

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"qbank/internal/auth"

	"github.com/go-chi/chi/v5"
)

type mockSubjectService struct {
	listFn   func(ctx context.Context) ([]Subject, error)
	createFn func(ctx context.Context, actorID int64, name string) (*Subject, error)
	deleteFn func(ctx context.Context, actorID, id int64) error
}

func (m *mockSubjectService) List(ctx context.Context) ([]Subject, error) {
	if m.listFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listFn(ctx)
}

func (m *mockSubjectService) Create(ctx context.Context, actorID int64, name string) (*Subject, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, actorID, name)
}

func (m *mockSubjectService) Delete(ctx context.Context, actorID, id int64) error {
	if m.deleteFn == nil {
		return errors.New("not implemented")
	}
	return m.deleteFn(ctx, actorID, id)
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func asAdmin(r *http.Request) *http.Request {
	return r.WithContext(auth.ContextWithUser(r.Context(), &auth.User{ID: 1, Role: "admin"}))
}

func TestCreateSubjectConflict(t *testing.T) {
	h := &Handler{svc: &mockSubjectService{
		createFn: func(ctx context.Context, actorID int64, name string) (*Subject, error) {
			if name != "Physics" {
				t.Fatalf("unexpected name %q", name)
			}
			return nil, ErrSubjectExists
		},
	}}

	body, _ := json.Marshal(map[string]any{"name": "Physics"})
	req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/v1/admin/subjects", bytes.NewReader(body)))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestCreateSubjectRequiresUser(t *testing.T) {
	h := &Handler{svc: &mockSubjectService{}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/subjects", bytes.NewReader([]byte(`{"name":"x"}`)))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestDeleteSubjectInUse(t *testing.T) {
	h := &Handler{svc: &mockSubjectService{
		deleteFn: func(ctx context.Context, actorID, id int64) error {
			if id != 12 {
				t.Fatalf("unexpected id %d", id)
			}
			return ErrSubjectInUse
		},
	}}

	req := asAdmin(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/subjects/12", nil))
	req = withParam(req, "id", "12")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestDeleteSubjectBadID(t *testing.T) {
	h := &Handler{svc: &mockSubjectService{}}
	req := asAdmin(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/subjects/abc", nil))
	req = withParam(req, "id", "abc")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
