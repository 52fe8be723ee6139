// Package registration converges the remote webhook subscription to the
// endpoint's handler registry and emits the verification event afterwards.
//
// Reconciliation is last-writer-wins: an update replaces the remote event set,
// so event types added remotely by hand are dropped on the next run. It is not
// atomic across processes and assumes a single instance registers an alias at
// a time.
package registration
