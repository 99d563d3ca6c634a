package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/krshsl/mockinterview/models"
	"github.com/krshsl/mockinterview/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "session_token"
	defaultTokenTTL   = 24 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type contextKey string

const sessionClaimsKey contextKey = "session_claims"

// AuthService guards a session with its owner's password and issues session
// scoped tokens. With an empty secret no tokens are issued and the middleware
// lets every request through.
type AuthService struct {
	store        repository.Store
	jwtSecret    []byte
	tokenExpiry  time.Duration
	secureCookie bool
}

type SessionClaims struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	jwt.RegisteredClaims
}

func NewAuthService(store repository.Store, jwtSecret string, tokenExpiry time.Duration, secureCookie bool) *AuthService {
	if tokenExpiry <= 0 {
		tokenExpiry = defaultTokenTTL
	}
	return &AuthService{
		store:        store,
		jwtSecret:    []byte(jwtSecret),
		tokenExpiry:  tokenExpiry,
		secureCookie: secureCookie,
	}
}

func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Join checks the owner's credentials for the session behind code. It returns
// (nil, "", nil) when no session has that code.
func (s *AuthService) Join(ctx context.Context, code, username, password string) (*models.Session, string, error) {
	session, err := s.store.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, "", nil
	}

	if session.Username != username {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(session.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(session)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("Session joined", "session_id", session.ID, "code", session.Code)
	return session, token, nil
}

// IssueToken signs a token for session, or returns "" when auth is disabled.
func (s *AuthService) IssueToken(session *models.Session) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	now := time.Now()
	claims := &SessionClaims{
		SessionID: session.ID,
		Code:      session.Code,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) VerifyToken(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsedToken.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SetSessionCookie sets the HTTP-only session cookie
func (s *AuthService) SetSessionCookie(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.tokenExpiry.Seconds()),
	})
}

func (s *AuthService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// TokenFromRequest reads the bearer header, then the session cookie, then the
// token query parameter browsers use for WebSocket upgrades.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// Middleware requires a token issued for the {code} in the route.
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := s.VerifyToken(token)
		if err != nil {
			slog.Warn("Rejected session token", "error", err, "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Code != chi.URLParam(r, "code") {
			http.Error(w, "Token does not belong to this session", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), sessionClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the verified claims, if the request carried any.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(sessionClaimsKey).(*SessionClaims)
	return claims, ok
}
