// Package webhook implements the outbound webhook transformation pipeline.
//
// After a stub is served, each of its webhooks becomes a Request. The request
// is threaded through an ordered list of Transformers, each returning a new
// Request, before the dispatcher sends it. Requests are immutable values, so
// concurrent dispatches share nothing.
//
// # Body signing
//
// BodySignature signs the outbound body with HMAC-SHA256 when the webhook
// declares a bodySignature block:
//
//	webhooks:
//	  - url: https://example.test/callback
//	    body: '{"name":"Tom"}'
//	    bodySignature:
//	      secretEnvVarName: SIGNATURE_SECRET
//	      headerName: X-Custom-Signature
//
// The secret is resolved by name through a secrets.Resolver when the webhook
// fires. The digest is 64 lowercase hex characters.
//
// # Pass-through rules
//
//   - No bodySignature block: unchanged
//   - Only one of secretEnvVarName/headerName: unchanged
//   - Secret not resolvable: unchanged (logged at DEBUG)
//   - Hash not linked into the binary: ErrAlgorithmUnavailable, chain aborted
//
// # Example Usage
//
//	chain := webhook.NewChain(
//		webhook.NewBodySignature(secrets.Env()),
//		webhook.BodyLength{},
//	)
//	out, err := chain.Apply(ctx, event, req)
package webhook
