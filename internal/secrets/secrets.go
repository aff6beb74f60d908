// Package secrets resolves signing secrets by name.
//
// A Resolver is called on every signed webhook, possibly from many goroutines
// at once, so every implementation here is a read-only lookup. Remote sources
// (SSM) are read once at startup into a fixed snapshot.
package secrets

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Resolver maps a secret name to its value. The bool reports whether the name
// was found; an empty value that exists is still found.
type Resolver func(name string) (string, bool)

// Env reads the process environment.
func Env() Resolver {
	return os.LookupEnv
}

// Map resolves from a copy of m.
func Map(m map[string]string) Resolver {
	snapshot := make(map[string]string, len(m))
	for k, v := range m {
		snapshot[k] = v
	}
	return func(name string) (string, bool) {
		v, ok := snapshot[name]
		return v, ok
	}
}

// First tries each resolver in order and returns the first hit.
func First(resolvers ...Resolver) Resolver {
	rs := make([]Resolver, 0, len(resolvers))
	for _, r := range resolvers {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return func(name string) (string, bool) {
		for _, r := range rs {
			if v, ok := r(name); ok {
				return v, true
			}
		}
		return "", false
	}
}

// DotEnv reads KEY=VALUE files without touching the process environment.
// Later files win over earlier ones.
func DotEnv(paths ...string) (Resolver, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("dotenv: no files given")
	}
	merged := make(map[string]string)
	for _, p := range paths {
		values, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("dotenv %s: %w", p, err)
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return Map(merged), nil
}
