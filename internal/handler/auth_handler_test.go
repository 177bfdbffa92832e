package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vrischmann/servare/internal/model"
)

type mockAuthService struct {
	loginFn      func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn     func(ctx context.Context, sessionID string) error
	createUserFn func(ctx context.Context, email, password string) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CreateUser(ctx context.Context, email, password string) (*model.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(ctx, email, password)
	}
	return &model.User{ID: "user-1", Email: email}, nil
}

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			if email != "jane@example.com" || password != "hunter2" {
				t.Errorf("email/password = %q/%q, want %q/%q", email, password, "jane@example.com", "hunter2")
			}
			return &model.Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	body := `{"email": "jane@example.com", "password": "hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected a session_id cookie to be set")
	}
	if cookie.Value != "sess-1" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "sess-1")
	}
	if !cookie.HttpOnly {
		t.Error("expected the session cookie to be HttpOnly")
	}
}

func TestAuthHandler_Login_InvalidCredentials_ReturnsUnauthorized(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	body := `{"email": "jane@example.com", "password": "wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthHandler_Login_MissingFields_ReturnsBadRequest(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	body := `{"email": "", "password": ""}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			called = true
			if sessionID != "sess-1" {
				t.Errorf("sessionID = %q, want %q", sessionID, "sess-1")
			}
			return nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !called {
		t.Error("expected Logout to be called with the session cookie value")
	}

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			cookie = c
		}
	}
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Error("expected the session cookie to be cleared (MaxAge < 0)")
	}
}

func TestAuthHandler_Logout_NoCookie_StillClearsAndSucceeds(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestAuthHandler_Signup_Success(t *testing.T) {
	svc := &mockAuthService{
		createUserFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email}, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	body := `{"email": "jane@example.com", "password": "hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["email"] != "jane@example.com" {
		t.Errorf("email = %v, want %q", result["email"], "jane@example.com")
	}
}

func TestAuthHandler_Signup_ServiceError_ReturnsInternalServerError(t *testing.T) {
	svc := &mockAuthService{
		createUserFn: func(ctx context.Context, email, password string) (*model.User, error) {
			return nil, errors.New("database error")
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	body := `{"email": "jane@example.com", "password": "hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestAuthHandler_Me_Success(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result["id"] != "user-123" {
		t.Errorf("id = %v, want %q", result["id"], "user-123")
	}
}

func TestAuthHandler_Me_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
