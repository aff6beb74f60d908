package server

import (
	"net/http"

	"github.com/mattjoyce/postserve/internal/auth"
	"github.com/mattjoyce/postserve/internal/config"
)

func (s *Server) adminTokens() []auth.TokenConfig {
	tokens := make([]auth.TokenConfig, 0, len(s.config.AdminTokens))
	for _, t := range s.config.AdminTokens {
		tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	return tokens
}

// authMiddleware authenticates admin requests. With no tokens configured every
// request passes as a full-access principal.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	tokens := s.adminTokens()
	open := auth.NewPrincipal(config.ScopeAll)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(tokens) == 0 {
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), open)))
			return
		}

		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		principal, ok := auth.Authenticate(token, tokens)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (s *Server) requireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok || !auth.HasAnyScope(p, scopes...) {
				s.writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
