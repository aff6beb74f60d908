package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Transformer names accepted in the transformers list.
const (
	TransformerBodySignature = "body-signature"
	TransformerBodyLength    = "body-length"
)

var knownTransformers = map[string]bool{
	TransformerBodySignature: true,
	TransformerBodyLength:    true,
}

var validScopes = map[string]bool{
	ScopeAll:             true,
	ScopeDeliveriesRead:  true,
	ScopeDeliveriesWrite: true,
	ScopeEventsRead:      true,
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// Load reads, verifies and validates the configuration file at configPath.
// If a checksum sidecar (<file>.b3) exists next to the file, the file must match it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if err := verifyChecksumIfPresent(absPath); err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourcePath = absPath
	return cfg, nil
}

// Parse decodes YAML into a Config with defaults applied, then validates it.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyStubDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyStubDefaults(cfg *Config) {
	for i := range cfg.Stubs {
		stub := &cfg.Stubs[i]
		stub.Method = strings.ToUpper(strings.TrimSpace(stub.Method))
		if stub.Method == "" {
			stub.Method = "GET"
		}
		if stub.Response.Status == 0 {
			stub.Response.Status = 200
		}
		if stub.Name == "" {
			stub.Name = stub.Method + " " + stub.Path
		}
		for j := range stub.Webhooks {
			wh := &stub.Webhooks[j]
			wh.Method = strings.ToUpper(strings.TrimSpace(wh.Method))
		}
	}
	if len(cfg.Secrets.Sources) == 0 {
		cfg.Secrets.Sources = []SecretSource{{Type: SourceEnv}}
	}
}

// interpolateEnv replaces ${VAR} with its environment value. Unknown variables
// are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := strings.ToLower(cfg.Service.LogFormat); f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive")
	}
	for i, tok := range cfg.Server.AdminTokens {
		if strings.TrimSpace(tok.Token) == "" || envVarPattern.MatchString(tok.Token) {
			return fmt.Errorf("server.admin_tokens[%d]: token is empty or references an unset variable", i)
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("server.admin_tokens[%d]: at least one scope is required", i)
		}
		for _, scope := range tok.Scopes {
			if !validScopes[scope] {
				return fmt.Errorf("server.admin_tokens[%d]: unknown scope %q", i, scope)
			}
		}
	}

	if cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required")
	}
	if cfg.Journal.Retention < 0 {
		return fmt.Errorf("journal.retention must not be negative")
	}
	if cfg.Journal.Retention > 0 && cfg.Journal.PruneInterval <= 0 {
		return fmt.Errorf("journal.prune_interval must be positive when retention is set")
	}

	if cfg.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch.timeout must be positive")
	}
	if cfg.Dispatch.RateLimit < 0 {
		return fmt.Errorf("dispatch.rate_limit must not be negative")
	}
	if cfg.Dispatch.RateLimit > 0 && cfg.Dispatch.Burst < 1 {
		return fmt.Errorf("dispatch.burst must be at least 1 when rate_limit is set")
	}

	for i, src := range cfg.Secrets.Sources {
		switch src.Type {
		case SourceEnv:
		case SourceDotEnv:
			if len(src.Files) == 0 {
				return fmt.Errorf("secrets.sources[%d]: dotenv requires files", i)
			}
		case SourceSSM:
			if !strings.HasPrefix(src.Path, "/") {
				return fmt.Errorf("secrets.sources[%d]: ssm path must start with /", i)
			}
		default:
			return fmt.Errorf("secrets.sources[%d]: unknown type %q", i, src.Type)
		}
	}

	for i, name := range cfg.Transformers {
		if !knownTransformers[name] {
			return fmt.Errorf("transformers[%d]: unknown transformer %q", i, name)
		}
	}

	seen := make(map[string]bool)
	for i, stub := range cfg.Stubs {
		if !validMethods[stub.Method] {
			return fmt.Errorf("stubs[%d]: unsupported method %q", i, stub.Method)
		}
		if !strings.HasPrefix(stub.Path, "/") {
			return fmt.Errorf("stubs[%d]: path must start with / (got %q)", i, stub.Path)
		}
		if strings.ContainsAny(stub.Path, "{}*") {
			return fmt.Errorf("stubs[%d]: path %q must be literal", i, stub.Path)
		}
		if strings.HasPrefix(stub.Path, "/__admin") {
			return fmt.Errorf("stubs[%d]: path %q is reserved", i, stub.Path)
		}
		key := stub.Method + " " + stub.Path
		if seen[key] {
			return fmt.Errorf("stubs[%d]: duplicate stub for %s", i, key)
		}
		seen[key] = true

		if stub.Response.Status < 100 || stub.Response.Status > 599 {
			return fmt.Errorf("stubs[%d]: invalid response status %d", i, stub.Response.Status)
		}
		for j, wh := range stub.Webhooks {
			if wh.URL == "" {
				return fmt.Errorf("stubs[%d].webhooks[%d]: url is required", i, j)
			}
			if !validMethods[wh.Method] {
				return fmt.Errorf("stubs[%d].webhooks[%d]: unsupported method %q", i, j, wh.Method)
			}
		}
	}

	return nil
}
