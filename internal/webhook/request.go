package webhook

import (
	"fmt"
	"strings"
)

// Method is an HTTP verb.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
)

// ParseMethod normalizes s to a known Method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodHead, MethodOptions:
		return m, nil
	case "":
		return "", fmt.Errorf("http method is empty")
	default:
		return "", fmt.Errorf("unsupported http method %q", s)
	}
}

// Request is the outbound webhook call. It is immutable: every With* method
// returns a new Request and leaves the receiver untouched.
type Request struct {
	method Method
	url    string
	header Header
	body   *string
	params Parameters
}

// NewRequest returns a request with no headers and an absent body.
func NewRequest(method Method, url string) Request {
	return Request{method: method, url: url}
}

func (r Request) Method() Method { return r.method }
func (r Request) URL() string    { return r.url }
func (r Request) Header() Header { return r.header }

// Body returns the body and whether one is present. An absent body differs
// from an empty one.
func (r Request) Body() (string, bool) {
	if r.body == nil {
		return "", false
	}
	return *r.body, true
}

// BodyString returns the body, or "" when absent.
func (r Request) BodyString() string {
	body, _ := r.Body()
	return body
}

// Parameters returns the extra per-call parameters declared on the webhook.
func (r Request) Parameters() Parameters { return r.params }

func (r Request) WithMethod(m Method) Request {
	r.method = m
	return r
}

func (r Request) WithURL(url string) Request {
	r.url = url
	return r
}

// WithHeader sets name to the single value, replacing every existing value.
// Callers wanting several values must pass them through WithHeaderValues.
func (r Request) WithHeader(name, value string) Request {
	r.header = r.header.With(name, value)
	return r
}

func (r Request) WithHeaderValues(name string, values ...string) Request {
	r.header = r.header.With(name, values...)
	return r
}

func (r Request) WithoutHeader(name string) Request {
	r.header = r.header.Without(name)
	return r
}

func (r Request) WithBody(body string) Request {
	r.body = &body
	return r
}

func (r Request) WithoutBody() Request {
	r.body = nil
	return r
}

func (r Request) WithParameters(p Parameters) Request {
	r.params = p.clone()
	return r
}

// Equal compares method, url, headers and body.
func (r Request) Equal(other Request) bool {
	if r.method != other.method || r.url != other.url || !r.header.Equal(other.header) {
		return false
	}
	if (r.body == nil) != (other.body == nil) {
		return false
	}
	return r.body == nil || *r.body == *other.body
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s", r.method, r.url)
}
