// Package transport talks to the remote event source over its REST API.
//
// Errors are classified once, here: connectivity and authentication problems
// carry the transport text code, error payloads returned by the API carry the
// remote-rejected text code.
package transport
