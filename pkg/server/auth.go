package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tariffscope/tariffscope/pkg/log"
)

// editorPaths are the endpoints that change stored tariffs. Everything
// else under /api/ is read-only or pure computation and stays open.
func editorOnly(r *http.Request) bool {
	switch {
	case r.Method == http.MethodDelete:
		return true
	case r.Method == http.MethodPost && r.URL.Path == "/api/tariffs":
		return true
	case r.Method == http.MethodPost && r.URL.Path == "/api/import/openei":
		return true
	}
	return false
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.WithAttrs(r.Context(), slog.String("reqPath", r.URL.Path))
		r = r.WithContext(ctx)

		if !editorOnly(r) || s.bypassAuth {
			next.ServeHTTP(w, r)
			return
		}

		email, err := s.authenticateRequest(r)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "editor authentication failed", slog.Any("error", err))
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !s.isEditor(email) {
			log.Ctx(ctx).WarnContext(ctx, "email not in editor list", slog.String("email", email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx = log.WithAttrs(ctx, slog.String("editor", email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticateRequest validates the bearer ID token and returns the email
// claim.
func (s *Server) authenticateRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization header")
	}
	if s.oidcVerifier == nil {
		return "", fmt.Errorf("no oidc verifier configured")
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	idToken, err := s.oidcVerifier(r.Context(), token)
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse token claims: %w", err)
	}
	if claims.Email == "" {
		return "", fmt.Errorf("token missing email claim")
	}
	if !claims.EmailVerified {
		return "", fmt.Errorf("email not verified")
	}
	return claims.Email, nil
}

// isEditor returns true if the email is in the editorEmails list.
func (s *Server) isEditor(email string) bool {
	for _, editorEmail := range s.editorEmails {
		if email == editorEmail {
			return true
		}
	}
	return false
}
