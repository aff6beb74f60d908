package doctor

import (
	"strings"
	"testing"

	"github.com/mattjoyce/postserve/internal/config"
	"github.com/mattjoyce/postserve/internal/secrets"
)

func signedWebhook(url string) config.WebhookConfig {
	body := "Tom"
	return config.WebhookConfig{
		Method: "POST",
		URL:    url,
		Body:   &body,
		Extra: map[string]any{
			"bodySignature": map[string]any{
				"secretEnvVarName": "SIGNATURE_SECRET",
				"headerName":       "X-Custom-Signature",
			},
		},
	}
}

func validConfig() *config.Config {
	return &config.Config{
		Server:       config.ServerConfig{Listen: "127.0.0.1:8080"},
		Transformers: []string{config.TransformerBodySignature},
		Stubs: []config.StubConfig{
			{
				Name:     "templating",
				Method:   "POST",
				Path:     "/templating",
				Webhooks: []config.WebhookConfig{signedWebhook("http://localhost:9000/callback/123")},
			},
		},
	}
}

func withSecret() secrets.Resolver {
	return secrets.Map(map[string]string{"SIGNATURE_SECRET": "s3cret"})
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), withSecret()).Validate()
	if !r.Valid || len(r.Warnings) != 0 {
		t.Fatalf("expected clean result, got errors=%v warnings=%v", r.Errors, r.Warnings)
	}
	if got := FormatHuman(r); got != "Configuration valid.\n" {
		t.Fatalf("FormatHuman() = %q", got)
	}
}

func TestValidate_UnresolvedSecret(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), secrets.Map(nil)).Validate()
	if !r.Valid {
		t.Fatalf("unresolved secret should only warn: %v", r.Errors)
	}
	assertHasWarning(t, r, "signing", `secret "SIGNATURE_SECRET" does not resolve`)
}

func TestValidate_NilResolverSkipsSecrets(t *testing.T) {
	t.Parallel()
	r := New(validConfig(), nil).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

func TestValidate_IncompleteSignatureBlock(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Stubs[0].Webhooks[0].Extra["bodySignature"] = map[string]any{"headerName": "X-Sig"}
	r := New(cfg, withSecret()).Validate()
	assertHasWarning(t, r, "signing", "needs both secretEnvVarName and headerName")
}

func TestValidate_SigningTransformerDisabled(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Transformers = []string{config.TransformerBodyLength}
	r := New(cfg, withSecret()).Validate()
	assertHasWarning(t, r, "signing", "is not enabled")
}

func TestValidate_StaticHeaderOverwritten(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Stubs[0].Webhooks[0].Headers = []config.HeaderConfig{{Name: "x-custom-signature", Values: []string{"static"}}}
	r := New(cfg, withSecret()).Validate()
	assertHasWarning(t, r, "signing", "overwritten by the signature")
}

func TestValidate_BadWebhookURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"scheme", "ftp://example.com/x", "must use http or https"},
		{"no host", "http:///path", "has no host"},
		{"unparseable", "http://[::1", "invalid url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Stubs[0].Webhooks[0].URL = tt.url
			r := New(cfg, withSecret()).Validate()
			if r.Valid {
				t.Fatal("expected invalid")
			}
			assertHasError(t, r, "webhooks", tt.want)
		})
	}
}

func TestValidate_DuplicateTransformer(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Transformers = []string{config.TransformerBodySignature, config.TransformerBodySignature}
	r := New(cfg, withSecret()).Validate()
	assertHasWarning(t, r, "transformers", "repeats transformers[0]")
}

func TestValidate_SelfTarget(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Stubs[0].Webhooks[0].URL = "http://127.0.0.1:8080/templating"
	r := New(cfg, withSecret()).Validate()
	assertHasWarning(t, r, "webhooks", "may loop")

	cfg.Stubs[0].Webhooks[0].URL = "http://127.0.0.1:8080/elsewhere"
	r = New(cfg, withSecret()).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("non-stub path should not warn: %v", r.Warnings)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:    false,
		Errors:   []Issue{{Category: "webhooks", Field: "stubs[0].webhooks[0].url", Message: "bad"}},
		Warnings: []Issue{{Category: "signing", Message: "unsigned"}},
	}
	out := FormatHuman(r)
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"ERROR [webhooks] stubs[0].webhooks[0].url: bad",
		"WARN  [signing] unsigned",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("FormatJSON() = %s", out)
	}
}

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
