// Package auth authenticates bearer tokens for the admin API.
//
// Scopes have the form "<resource>:<access>" where access is "ro" or "rw".
// A read-write grant also satisfies read-only checks on the same resource,
// and "*" satisfies everything.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Wildcard grants every scope.
const Wildcard = "*"

// Access levels.
const (
	ReadOnly  = "ro"
	ReadWrite = "rw"
)

// TokenConfig is a bearer token with the scopes it grants.
type TokenConfig struct {
	Token  string
	Scopes []string
}

// Principal is an authenticated caller. Scopes holds the effective grants,
// with read-write grants already expanded to their read-only counterparts.
type Principal struct {
	Scopes map[string]struct{}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// NewPrincipal builds a principal from raw scope strings.
func NewPrincipal(scopes ...string) Principal {
	return Principal{Scopes: effectiveScopes(scopes)}
}

// ExtractBearerToken returns the token from "Authorization: Bearer <token>".
func ExtractBearerToken(r *http.Request) (string, error) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	switch {
	case scheme == "":
		return "", errors.New("missing Authorization header")
	case !found || !strings.EqualFold(scheme, "Bearer"):
		return "", errors.New("invalid Authorization header format")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// Authenticate matches a presented bearer token against configured tokens.
// Every token is compared so the time taken does not reveal which one matched.
func Authenticate(presented string, tokens []TokenConfig) (Principal, bool) {
	match := -1
	for i, t := range tokens {
		if tokenEqual(presented, t.Token) && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return Principal{}, false
	}
	return NewPrincipal(tokens[match].Scopes...), true
}

func tokenEqual(presented, configured string) bool {
	if presented == "" || configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// ParseScope splits a scope into resource and access. The wildcard parses as
// resource "*" with read-write access.
func ParseScope(scope string) (resource, access string, ok bool) {
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == Wildcard {
		return Wildcard, ReadWrite, true
	}
	resource, access, found := strings.Cut(scope, ":")
	if !found || resource == "" || (access != ReadOnly && access != ReadWrite) {
		return "", "", false
	}
	return resource, access, true
}

func effectiveScopes(scopes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		resource, access, ok := ParseScope(s)
		if !ok {
			continue
		}
		if resource == Wildcard {
			out[Wildcard] = struct{}{}
			continue
		}
		out[resource+":"+ReadOnly] = struct{}{}
		if access == ReadWrite {
			out[resource+":"+ReadWrite] = struct{}{}
		}
	}
	return out
}

// HasAnyScope reports whether p holds the wildcard or any of required.
func HasAnyScope(p Principal, required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if _, ok := p.Scopes[Wildcard]; ok {
		return true
	}
	for _, s := range required {
		if _, ok := p.Scopes[strings.ToLower(s)]; ok {
			return true
		}
	}
	return false
}
