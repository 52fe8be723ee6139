// Package inbound routes received event envelopes to the handler registered
// for their type.
//
// The registry is fixed at construction and read concurrently afterwards.
// Dispatch performs exactly one handler invocation per envelope and never
// retries; redelivery is left to the event source reacting to the failed
// response.
package inbound
