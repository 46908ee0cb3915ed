package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockSessionService struct {
	authenticateFn func(ctx context.Context, username, password string) (*User, error)
	createFn       func(ctx context.Context, userID int64, ip, ua string) (string, time.Time, error)
	getFn          func(ctx context.Context, token string) (*User, error)
	revokeFn       func(ctx context.Context, token string) error
}

func (m *mockSessionService) AuthenticatePassword(ctx context.Context, username, password string) (*User, error) {
	if m.authenticateFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.authenticateFn(ctx, username, password)
}

func (m *mockSessionService) CreateSession(ctx context.Context, userID int64, ip, ua string) (string, time.Time, error) {
	if m.createFn == nil {
		return "", time.Time{}, errors.New("not implemented")
	}
	return m.createFn(ctx, userID, ip, ua)
}

func (m *mockSessionService) GetSessionUser(ctx context.Context, token string) (*User, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, token)
}

func (m *mockSessionService) RevokeSession(ctx context.Context, token string) error {
	if m.revokeFn == nil {
		return nil
	}
	return m.revokeFn(ctx, token)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h := NewHandler(&mockSessionService{
		authenticateFn: func(ctx context.Context, username, password string) (*User, error) {
			return &User{ID: 3, Username: username, Role: RoleAdmin, IsActive: true}, nil
		},
		createFn: func(ctx context.Context, userID int64, ip, ua string) (string, time.Time, error) {
			if userID != 3 {
				t.Fatalf("unexpected user id %d", userID)
			}
			return "tok-123", time.Now().Add(time.Hour), nil
		},
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"username":"admin","password":"pw"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value != "tok-123" || !cookies[0].Secure {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
}

func TestLoginErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive", ErrForbidden, http.StatusForbidden},
		{"store down", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&mockSessionService{
				authenticateFn: func(ctx context.Context, username, password string) (*User, error) { return nil, tc.err },
			}, false)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewBufferString(`{"username":"a","password":"b"}`))
			w := httptest.NewRecorder()
			h.Login(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	h := NewHandler(&mockSessionService{
		getFn: func(ctx context.Context, token string) (*User, error) {
			if token != "abc" {
				return nil, ErrUnauthorized
			}
			return &User{ID: 9, Role: RoleAdmin}, nil
		},
	}, false)

	var seen *User
	protected := h.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CurrentUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || seen == nil || seen.ID != 9 {
		t.Fatalf("expected authenticated request, got %d %+v", w.Code, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireRoles(t *testing.T) {
	h := NewHandler(&mockSessionService{}, false)
	gate := h.RequireRoles(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		user *User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"student", &User{ID: 2, Role: RoleStudent}, http.StatusForbidden},
		{"admin", &User{ID: 1, Role: RoleAdmin}, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/subjects", nil)
			if tc.user != nil {
				req = req.WithContext(ContextWithUser(req.Context(), tc.user))
			}
			w := httptest.NewRecorder()
			gate.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	var revoked string
	h := NewHandler(&mockSessionService{
		revokeFn: func(ctx context.Context, token string) error { revoked = token; return nil },
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK || revoked != "tok" {
		t.Fatalf("expected revoke of tok, got %d %q", w.Code, revoked)
	}
	if c := w.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("expected expiring cookie, got %+v", c)
	}
}
