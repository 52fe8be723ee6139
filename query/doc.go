// Package query holds the read side of registration: the reconciler's
// current state and the ledger history.
package query
