// Package backend defines the contract with the municipal inspections
// backend and its HTTP implementation.
//
// The wire format lives entirely in this package; the queues and the sync
// coordinator only see the Client interface and the error taxonomy used to
// classify outcomes into retryable and terminal failures.
package backend
