package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr string
	}{
		{name: "valid", header: "Bearer abc", want: "abc"},
		{name: "padded", header: "Bearer   abc  ", want: "abc"},
		{name: "missing", header: "", wantErr: "missing Authorization header"},
		{name: "wrong scheme", header: "Basic abc", wantErr: "invalid Authorization header format"},
		{name: "empty token", header: "Bearer   ", wantErr: "missing bearer token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(r)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	tokens := []TokenConfig{
		{Token: "reader", Scopes: []string{"deliveries:ro", " "}},
		{Token: "admin", Scopes: []string{"*"}},
	}

	p, ok := Authenticate("reader", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, "deliveries:ro"))
	assert.False(t, HasAnyScope(p, "events:ro"))
	assert.Len(t, p.Scopes, 1)

	p, ok = Authenticate("admin", tokens)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p, "events:ro"))

	_, ok = Authenticate("readerx", tokens)
	assert.False(t, ok)
	_, ok = Authenticate("", []TokenConfig{{Token: ""}})
	assert.False(t, ok, "empty tokens never match")
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Scopes: map[string]struct{}{"*": {}}})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.True(t, HasAnyScope(p))
}

func TestReadWriteImpliesReadOnly(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{name: "rw satisfies ro", granted: []string{"deliveries:rw"}, required: "deliveries:ro", want: true},
		{name: "rw satisfies rw", granted: []string{"deliveries:rw"}, required: "deliveries:rw", want: true},
		{name: "ro does not satisfy rw", granted: []string{"deliveries:ro"}, required: "deliveries:rw", want: false},
		{name: "other resource", granted: []string{"deliveries:rw"}, required: "events:ro", want: false},
		{name: "wildcard", granted: []string{"*"}, required: "deliveries:rw", want: true},
		{name: "case folded", granted: []string{" Events:RO "}, required: "events:ro", want: true},
		{name: "malformed grant ignored", granted: []string{"deliveries", "events:admin"}, required: "deliveries:ro", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasAnyScope(NewPrincipal(tt.granted...), tt.required))
		})
	}
}

func TestParseScope(t *testing.T) {
	resource, access, ok := ParseScope("deliveries:rw")
	require.True(t, ok)
	assert.Equal(t, "deliveries", resource)
	assert.Equal(t, ReadWrite, access)

	_, _, ok = ParseScope(":ro")
	assert.False(t, ok)
	_, _, ok = ParseScope("jobs:write")
	assert.False(t, ok)

	resource, _, ok = ParseScope("*")
	require.True(t, ok)
	assert.Equal(t, Wildcard, resource)
}
