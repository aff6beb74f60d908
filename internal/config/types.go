package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete postserve configuration.
type Config struct {
	Service      ServiceConfig  `yaml:"service"`
	Server       ServerConfig   `yaml:"server"`
	Journal      JournalConfig  `yaml:"journal"`
	Dispatch     DispatchConfig `yaml:"dispatch"`
	Secrets      SecretsConfig  `yaml:"secrets"`
	Tracing      TracingConfig  `yaml:"tracing"`
	Transformers []string       `yaml:"transformers" default:"[\"body-signature\"]"`
	Stubs        []StubConfig   `yaml:"stubs"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" default:"postserve"`
	LogLevel  string `yaml:"log_level" default:"info"`
	LogFormat string `yaml:"log_format" default:"json"`
	LockPath  string `yaml:"lock_path" default:"./data/postserve.lock"`
}

// ServerConfig defines the stub listener.
type ServerConfig struct {
	Listen      string `yaml:"listen" default:"127.0.0.1:8080"`
	MaxBodySize int64  `yaml:"max_body_size" default:"1048576"`
	// AdminTokens guard /__admin. With none configured the admin API is open.
	AdminTokens []AdminToken `yaml:"admin_tokens,omitempty"`
}

// Admin token scopes.
const (
	ScopeAll             = "*"
	ScopeDeliveriesRead  = "deliveries:ro"
	ScopeDeliveriesWrite = "deliveries:rw"
	ScopeEventsRead      = "events:ro"
)

// AdminToken is a bearer token for the admin API with the scopes it grants.
type AdminToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// JournalConfig defines where delivered webhooks are recorded.
type JournalConfig struct {
	Path string `yaml:"path" default:"./data/journal.db"`
	// Retention prunes older deliveries; 0 keeps everything.
	Retention     time.Duration `yaml:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval" default:"1h"`
}

// DispatchConfig defines outbound webhook delivery. There is no retry.
type DispatchConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"10s"`
	// RateLimit is the sustained deliveries per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst" default:"1"`
}

// SecretsConfig lists where signing secrets are resolved from, in priority order.
type SecretsConfig struct {
	Sources []SecretSource `yaml:"sources"`
}

// Secret source types.
const (
	SourceEnv    = "env"
	SourceDotEnv = "dotenv"
	SourceSSM    = "ssm"
)

// SecretSource is one entry of SecretsConfig.
type SecretSource struct {
	Type   string   `yaml:"type"`
	Files  []string `yaml:"files,omitempty"`  // dotenv
	Path   string   `yaml:"path,omitempty"`   // ssm parameter path
	Region string   `yaml:"region,omitempty"` // ssm
}

// TracingConfig toggles OpenTelemetry spans on stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StubConfig is a canned response served on an exact method and path.
type StubConfig struct {
	Name     string          `yaml:"name"`
	Method   string          `yaml:"method"`
	Path     string          `yaml:"path"`
	Response ResponseConfig  `yaml:"response"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

// ResponseConfig is what a stub answers with.
type ResponseConfig struct {
	Status  int               `yaml:"status"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
}

// WebhookConfig is a webhook fired after its stub is served. Keys other than
// method, url, headers and body are kept in Extra, e.g. bodySignature.
type WebhookConfig struct {
	Method  string
	URL     string
	Headers []HeaderConfig
	// Body is nil when the webhook declares no body.
	Body  *string
	Extra map[string]any
}

// HeaderConfig keeps declaration order; a header may carry several values.
type HeaderConfig struct {
	Name   string
	Values []string
}

// UnmarshalYAML splits the known webhook fields from the extra parameters.
func (w *WebhookConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: webhook must be a mapping", node.Line)
	}

	*w = WebhookConfig{Method: "POST"}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "method":
			w.Method = val.Value
		case "url":
			w.URL = val.Value
		case "body":
			body, err := decodeBody(val)
			if err != nil {
				return err
			}
			w.Body = body
		case "headers":
			headers, err := decodeHeaders(val)
			if err != nil {
				return err
			}
			w.Headers = headers
		default:
			var v any
			if err := val.Decode(&v); err != nil {
				return fmt.Errorf("line %d: webhook parameter %q: %w", val.Line, key.Value, err)
			}
			if w.Extra == nil {
				w.Extra = make(map[string]any)
			}
			w.Extra[key.Value] = v
		}
	}
	return nil
}

// decodeBody returns nil for a null body. Mapping and sequence bodies are sent
// as compact JSON with object keys sorted.
func decodeBody(node *yaml.Node) (*string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		body := node.Value
		return &body, nil
	case yaml.MappingNode, yaml.SequenceNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: webhook body: %w", node.Line, err)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("line %d: webhook body cannot be encoded as JSON: %w", node.Line, err)
		}
		body := string(data)
		return &body, nil
	case yaml.AliasNode:
		return decodeBody(node.Alias)
	default:
		return nil, fmt.Errorf("line %d: webhook body must be a string, a mapping or a list", node.Line)
	}
}

func decodeHeaders(node *yaml.Node) ([]HeaderConfig, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: webhook headers must be a mapping", node.Line)
	}
	out := make([]HeaderConfig, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name, val := node.Content[i].Value, node.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			out = append(out, HeaderConfig{Name: name, Values: []string{val.Value}})
		case yaml.SequenceNode:
			var values []string
			if err := val.Decode(&values); err != nil {
				return nil, fmt.Errorf("line %d: header %q: %w", val.Line, name, err)
			}
			out = append(out, HeaderConfig{Name: name, Values: values})
		default:
			return nil, fmt.Errorf("line %d: header %q must be a string or a list", val.Line, name)
		}
	}
	return out, nil
}
