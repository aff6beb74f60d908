package webhook

import (
	"context"
	"errors"
	"testing"
)

func setHeader(name, value string) Transformer {
	return TransformerFunc(func(_ ServeEvent, r Request) (Request, error) {
		return r.WithHeader(name, value), nil
	})
}

func TestApply_LeftToRight(t *testing.T) {
	req := NewRequest(MethodPost, "http://localhost/hook")

	got, err := Apply(ServeEvent{}, req, setHeader("X-Step", "A"), setHeader("x-step", "B"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if v := got.Header().Values("X-Step"); len(v) != 1 || v[0] != "B" {
		t.Errorf("X-Step = %v, want [B]", v)
	}

	got, err = Apply(ServeEvent{}, req, setHeader("X-Step", "B"), setHeader("X-Step", "A"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if v := got.Header().Get("X-Step"); v != "A" {
		t.Errorf("X-Step = %q, want A", v)
	}
}

func TestApply_EachStepSeesPreviousOutput(t *testing.T) {
	var seen []string
	record := TransformerFunc(func(_ ServeEvent, r Request) (Request, error) {
		seen = append(seen, r.BodyString())
		return r.WithBody(r.BodyString() + "+"), nil
	})

	got, err := Apply(ServeEvent{}, NewRequest(MethodPut, "http://x").WithBody("a"), record, record, record)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := []string{"a", "a+", "a++"}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d saw %q, want %q", i, seen[i], want[i])
		}
	}
	if got.BodyString() != "a+++" {
		t.Errorf("body = %q, want a+++", got.BodyString())
	}
}

func TestApply_EmptyChainReturnsInput(t *testing.T) {
	req := NewRequest(MethodGet, "http://x").WithHeader("A", "1")
	got, err := Apply(ServeEvent{}, req)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !got.Equal(req) {
		t.Error("empty chain changed the request")
	}
}

func TestChain_AbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	count := TransformerFunc(func(_ ServeEvent, r Request) (Request, error) {
		calls++
		return r.WithHeader("X-Count", "1"), nil
	})
	fail := TransformerFunc(func(ServeEvent, Request) (Request, error) {
		return Request{}, boom
	})

	chain := NewChain(count, fail, count)
	if chain.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", chain.Len())
	}

	got, err := chain.Apply(context.Background(), ServeEvent{ID: "e"}, NewRequest(MethodPost, "http://x"))
	if !errors.Is(err, boom) {
		t.Fatalf("Apply() error = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if got.Header().Has("X-Count") {
		t.Error("partial result returned on failure")
	}
}

func TestChain_LaterTransformerWins(t *testing.T) {
	chain := NewChain(BodyLength{}, setHeader(BodyLengthHeader, "override"))
	got, err := chain.Apply(context.Background(), ServeEvent{}, NewRequest(MethodPost, "http://x").WithBody("héllo"))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if v := got.Header().Get(BodyLengthHeader); v != "override" {
		t.Errorf("%s = %q, want override", BodyLengthHeader, v)
	}
}

func TestBodyLength(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{name: "absent body", req: NewRequest(MethodPost, "http://x"), want: "0"},
		{name: "ascii", req: NewRequest(MethodPost, "http://x").WithBody("Tom"), want: "3"},
		{name: "multibyte", req: NewRequest(MethodPost, "http://x").WithBody("héllo"), want: "5"},
		{name: "astral plane counts two units", req: NewRequest(MethodPost, "http://x").WithBody("hi 😀"), want: "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BodyLength{}.Transform(ServeEvent{}, tt.req)
			if err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			if v := got.Header().Get("X-Body-Length"); v != tt.want {
				t.Errorf("x-body-length = %q, want %q", v, tt.want)
			}
		})
	}
}
