// Package daemon wires the store, queues, and sync coordinator into a
// single-instance background process with a local control API.
package daemon
