// Package transport provides the HTTP-facing plumbing shared by the
// storyloom API server: error serialization with status mapping, the
// middleware chain (request ID propagation, structured logging, panic
// recovery), and the in-flight registry used for generation cancellation.
//
// The HTTP route handlers themselves live in the transport/http
// subpackage; this package holds the pieces that are independent of any
// particular route.
//
// Middleware composes over plain net/http handlers. The chain is applied
// in order: Chain(a, b, c) produces a(b(c(handler))), so the first
// middleware is the outermost wrapper.
package transport
