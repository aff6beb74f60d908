// Package dispatch delivers the webhooks of a served stub.
//
// For every webhook declared on a stub, the dispatcher builds the initial
// request, runs it through the transformer chain, and sends the result over
// HTTP. Each delivery runs on its own goroutine and shares nothing with the
// others.
//
// Outcomes (all recorded in the journal and published on the event hub):
//   - Target answered, any status → delivered
//   - Transport error or timeout → failed
//   - Transformer chain error → aborted, nothing is sent
//
// Delivery is attempted once. Retry and backoff are out of scope.
package dispatch
