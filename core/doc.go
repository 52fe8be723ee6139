// Package core contains the webhook endpoint domain: subscription and envelope
// types, the remote client contracts, configuration and the error taxonomy.
// Adapters (transport, store, server) depend on this package; core must not
// depend on them.
package core
