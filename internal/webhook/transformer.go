package webhook

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mattjoyce/postserve/internal/webhook"

// Transformer derives a new outbound request from the current one. It must not
// mutate event, and must be safe for concurrent use.
type Transformer interface {
	Transform(event ServeEvent, req Request) (Request, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(event ServeEvent, req Request) (Request, error)

func (f TransformerFunc) Transform(event ServeEvent, req Request) (Request, error) {
	return f(event, req)
}

// Apply runs transformers left to right, each one seeing the output of the
// previous. The first error aborts the chain and the zero Request is returned.
func Apply(event ServeEvent, req Request, transformers ...Transformer) (Request, error) {
	current := req
	for i, t := range transformers {
		next, err := t.Transform(event, current)
		if err != nil {
			return Request{}, fmt.Errorf("transformer %d (%s): %w", i, transformerName(t), err)
		}
		current = next
	}
	return current, nil
}

// Chain is an ordered, immutable list of transformers registered with the server.
type Chain struct {
	transformers []Transformer
	tracer       trace.Tracer
}

// NewChain keeps transformers in the given order. Duplicates are kept too.
func NewChain(transformers ...Transformer) *Chain {
	return &Chain{
		transformers: append([]Transformer(nil), transformers...),
		tracer:       otel.Tracer(tracerName),
	}
}

// Len returns the number of registered transformers.
func (c *Chain) Len() int {
	return len(c.transformers)
}

// Apply is the traced form of the package-level Apply: one span per transformer.
func (c *Chain) Apply(ctx context.Context, event ServeEvent, req Request) (Request, error) {
	ctx, span := c.tracer.Start(ctx, "webhook.chain",
		trace.WithAttributes(
			attribute.String("serve_event.id", event.ID),
			attribute.Int("chain.length", len(c.transformers)),
		))
	defer span.End()

	current := req
	for i, t := range c.transformers {
		name := transformerName(t)
		_, stepSpan := c.tracer.Start(ctx, "webhook.transform",
			trace.WithAttributes(
				attribute.String("transformer", name),
				attribute.Int("position", i),
			))
		next, err := t.Transform(event, current)
		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()
			span.SetStatus(codes.Error, "chain aborted")
			return Request{}, fmt.Errorf("transformer %d (%s): %w", i, name, err)
		}
		stepSpan.End()
		current = next
	}
	return current, nil
}

type named interface {
	Name() string
}

func transformerName(t Transformer) string {
	if n, ok := t.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", t)
}
