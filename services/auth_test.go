package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/mockinterview/models"
	"github.com/krshsl/mockinterview/repository"
)

func newAuthFixture(t *testing.T, secret string) (*AuthService, *models.Session) {
	t.Helper()
	store := repository.NewMemoryRepository()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	session := &models.Session{Code: "HJKLMN", Username: "mina", PasswordHash: hash, Status: models.StatusReady}
	if err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return NewAuthService(store, secret, time.Hour, false), session
}

func TestAuthServiceJoin(t *testing.T) {
	auth, session := newAuthFixture(t, "test-secret")
	ctx := context.Background()

	joined, token, err := auth.Join(ctx, session.Code, "mina", "s3cret")
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if joined == nil || joined.ID != session.ID {
		t.Fatalf("Join() session = %+v", joined)
	}
	claims, err := auth.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.Code != session.Code || claims.SessionID != session.ID || claims.Subject != "mina" {
		t.Errorf("claims = %+v", claims)
	}

	tests := []struct {
		name, code, user, password string
	}{
		{"wrong password", session.Code, "mina", "guess"},
		{"wrong user", session.Code, "someone", "s3cret"},
	}
	for _, tt := range tests {
		if _, _, err := auth.Join(ctx, tt.code, tt.user, tt.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: Join() error = %v, want ErrInvalidCredentials", tt.name, err)
		}
	}

	missing, token, err := auth.Join(ctx, "ZZZZZZ", "mina", "s3cret")
	if missing != nil || token != "" || err != nil {
		t.Errorf("Join() unknown code = %v, %q, %v; want nil, \"\", nil", missing, token, err)
	}
}

func TestVerifyTokenRejectsOtherSecrets(t *testing.T) {
	auth, session := newAuthFixture(t, "secret-one")
	token, err := auth.IssueToken(session)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	other := NewAuthService(nil, "secret-two", time.Hour, false)
	if _, err := other.VerifyToken(token); err == nil {
		t.Error("VerifyToken() accepted a token signed with another secret")
	}

	expired := NewAuthService(nil, "secret-one", time.Nanosecond, false)
	stale, _ := expired.IssueToken(session)
	time.Sleep(time.Millisecond)
	if _, err := expired.VerifyToken(stale); err == nil {
		t.Error("VerifyToken() accepted an expired token")
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth, session := newAuthFixture(t, "test-secret")
	token, err := auth.IssueToken(session)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	router := chi.NewRouter()
	router.Route("/sessions/{code}", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/persona", func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.SessionID != session.ID {
				http.Error(w, "no claims", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
	})

	tests := []struct {
		name   string
		code   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", session.Code, func(r *http.Request) {}, http.StatusUnauthorized},
		{"garbage token", session.Code, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"bearer", session.Code, func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", session.Code, func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token}) }, http.StatusOK},
		{"query", session.Code, func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", token)
			r.URL.RawQuery = q.Encode()
		}, http.StatusOK},
		{"other session", "PQRSTU", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sessions/"+tt.code+"/persona", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	auth, session := newAuthFixture(t, "")
	if auth.Enabled() {
		t.Fatal("auth enabled without a secret")
	}

	token, err := auth.IssueToken(session)
	if err != nil || token != "" {
		t.Errorf("IssueToken() = %q, %v; want empty", token, err)
	}

	called := false
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("middleware blocked a request with auth disabled")
	}
}

func TestSessionCookie(t *testing.T) {
	auth, _ := newAuthFixture(t, "test-secret")

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, "abc")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName || cookies[0].Value != "abc" || !cookies[0].HttpOnly {
		t.Errorf("cookies = %+v", cookies)
	}

	rec = httptest.NewRecorder()
	auth.ClearSessionCookie(rec)
	cookies = rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("clear cookies = %+v", cookies)
	}
}
