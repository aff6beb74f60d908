// Package doctor checks a loaded postserve configuration for problems that
// parse fine but misbehave at runtime, such as webhooks that would go out
// unsigned.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/mattjoyce/postserve/internal/config"
	"github.com/mattjoyce/postserve/internal/secrets"
	"github.com/mattjoyce/postserve/internal/webhook"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the secrets it will sign with.
type Doctor struct {
	cfg     *config.Config
	resolve secrets.Resolver
}

// New creates a Doctor. A nil resolver skips secret lookups.
func New(cfg *config.Config, resolve secrets.Resolver) *Doctor {
	return &Doctor{cfg: cfg, resolve: resolve}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateWebhookURLs(r)
	d.validateSignatures(r)
	d.warnDuplicateTransformers(r)
	d.warnSelfTargets(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func webhookField(stub, hook int) string {
	return fmt.Sprintf("stubs[%d].webhooks[%d]", stub, hook)
}

// validateWebhookURLs rejects targets the HTTP client cannot reach.
func (d *Doctor) validateWebhookURLs(r *Result) {
	for i, stub := range d.cfg.Stubs {
		for j, wh := range stub.Webhooks {
			field := webhookField(i, j) + ".url"
			u, err := url.Parse(wh.URL)
			if err != nil {
				d.addError(r, "webhooks", field, fmt.Sprintf("invalid url %q: %v", wh.URL, err))
				continue
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				d.addError(r, "webhooks", field, fmt.Sprintf("url %q must use http or https", wh.URL))
				continue
			}
			if u.Host == "" {
				d.addError(r, "webhooks", field, fmt.Sprintf("url %q has no host", wh.URL))
			}
		}
	}
}

// validateSignatures flags signing blocks that would silently send unsigned webhooks.
func (d *Doctor) validateSignatures(r *Result) {
	signing := d.hasTransformer(config.TransformerBodySignature)

	for i, stub := range d.cfg.Stubs {
		for j, wh := range stub.Webhooks {
			if _, declared := wh.Extra[webhook.BodySignatureParameter]; !declared {
				continue
			}
			field := webhookField(i, j) + "." + webhook.BodySignatureParameter

			spec, state := webhook.ParseSignatureSpec(wh.Extra)
			if state != webhook.SignatureComplete {
				d.addWarning(r, "signing", field,
					"bodySignature needs both secretEnvVarName and headerName; webhook will be sent unsigned")
				continue
			}
			if !signing {
				d.addWarning(r, "signing", field,
					fmt.Sprintf("transformer %q is not enabled; webhook will be sent unsigned", config.TransformerBodySignature))
				continue
			}
			if d.resolve != nil {
				if _, found := d.resolve(spec.SecretEnvVarName); !found {
					d.addWarning(r, "signing", field,
						fmt.Sprintf("secret %q does not resolve; webhook will be sent unsigned", spec.SecretEnvVarName))
				}
			}
			for _, h := range wh.Headers {
				if strings.EqualFold(h.Name, spec.HeaderName) {
					d.addWarning(r, "signing", webhookField(i, j)+".headers",
						fmt.Sprintf("header %q is overwritten by the signature", h.Name))
				}
			}
		}
	}
}

// warnDuplicateTransformers flags a transformer listed more than once.
func (d *Doctor) warnDuplicateTransformers(r *Result) {
	seen := make(map[string]int)
	for i, name := range d.cfg.Transformers {
		if prev, dup := seen[name]; dup {
			d.addWarning(r, "transformers", fmt.Sprintf("transformers[%d]", i),
				fmt.Sprintf("transformer %q repeats transformers[%d]", name, prev))
		}
		seen[name] = i
	}
}

// warnSelfTargets catches webhooks pointed back at this server, which can loop.
func (d *Doctor) warnSelfTargets(r *Result) {
	_, listenPort, err := net.SplitHostPort(d.cfg.Server.Listen)
	if err != nil {
		return
	}

	stubs := make(map[string]bool, len(d.cfg.Stubs))
	for _, s := range d.cfg.Stubs {
		stubs[s.Method+" "+s.Path] = true
	}

	for i, stub := range d.cfg.Stubs {
		for j, wh := range stub.Webhooks {
			u, err := url.Parse(wh.URL)
			if err != nil || u.Port() != listenPort || !isLoopback(u.Hostname()) {
				continue
			}
			if stubs[strings.ToUpper(wh.Method)+" "+u.Path] {
				d.addWarning(r, "webhooks", webhookField(i, j)+".url",
					fmt.Sprintf("url %q targets stub %s %s on this server and may loop", wh.URL, strings.ToUpper(wh.Method), u.Path))
			}
		}
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (d *Doctor) hasTransformer(name string) bool {
	for _, n := range d.cfg.Transformers {
		if n == name {
			return true
		}
	}
	return false
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
