package webhook

import (
	"crypto"
	"crypto/hmac"
	_ "crypto/sha256" // registers crypto.SHA256
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/postserve/internal/log"
	"github.com/mattjoyce/postserve/internal/secrets"
)

// BodySignatureParameter is the extra parameter holding the signing block:
//
//	bodySignature:
//	  secretEnvVarName: SIGNATURE_SECRET
//	  headerName: X-Custom-Signature
const BodySignatureParameter = "bodySignature"

// ErrAlgorithmUnavailable means the HMAC hash is not linked into the binary.
// It is a broken build, not a per-call condition, so it aborts the chain.
var ErrAlgorithmUnavailable = errors.New("webhook: signing algorithm unavailable")

// BodySignature signs the outbound body with HMAC-SHA256 and sets the digest on
// a caller-named header. The secret is looked up by name at call time, so
// configuration never carries it.
//
// Missing configuration and unresolved secrets are not errors: the request
// passes through unchanged and the webhook is still delivered unsigned.
type BodySignature struct {
	resolve secrets.Resolver
	hash    crypto.Hash
	logger  *slog.Logger
}

// NewBodySignature returns the transformer. A nil resolver reads the process environment.
func NewBodySignature(resolve secrets.Resolver) *BodySignature {
	if resolve == nil {
		resolve = secrets.Env()
	}
	return &BodySignature{
		resolve: resolve,
		hash:    crypto.SHA256,
		logger:  log.WithComponent("body-signature"),
	}
}

func (t *BodySignature) Name() string { return "body-signature" }

// Transform implements Transformer.
func (t *BodySignature) Transform(event ServeEvent, req Request) (Request, error) {
	spec, state := ParseSignatureSpec(req.Parameters())
	if state != SignatureComplete {
		t.logger.Debug("body signature skipped",
			"reason", state.String(),
			"serve_event_id", event.ID,
		)
		return req, nil
	}

	secret, found := t.resolve(spec.SecretEnvVarName)
	if !found {
		t.logger.Debug("body signature skipped",
			"reason", "secret not resolved",
			"secret_name", spec.SecretEnvVarName,
			"serve_event_id", event.ID,
		)
		return req, nil
	}

	signature, err := sign(t.hash, secret, req.BodyString())
	if err != nil {
		return Request{}, err
	}
	return req.WithHeader(spec.HeaderName, signature), nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body keyed by secret.
func Sign(secret, body string) (string, error) {
	return sign(crypto.SHA256, secret, body)
}

func sign(h crypto.Hash, secret, body string) (string, error) {
	if !h.Available() {
		return "", fmt.Errorf("%w: %v", ErrAlgorithmUnavailable, h)
	}
	mac := hmac.New(h.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature checks signature against the HMAC-SHA256 of body.
//
// Supported formats:
//   - "sha256=<hex>" (GitHub style)
//   - "<hex>" (plain hex)
//
// The comparison is constant-time and every failure returns the same generic error.
func VerifySignature(body, signature, secret string) error {
	if secret == "" || signature == "" {
		return fmt.Errorf("webhook verification failed")
	}

	mac := hmac.New(crypto.SHA256.New, []byte(secret))
	mac.Write([]byte(body))
	expected := mac.Sum(nil)

	actual, err := parseSignature(signature)
	if err != nil {
		return fmt.Errorf("webhook verification failed")
	}

	if subtle.ConstantTimeCompare(expected, actual) != 1 {
		return fmt.Errorf("webhook verification failed")
	}
	return nil
}

func parseSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
}
