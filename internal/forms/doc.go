// Package forms implements the inspection workflow: opening an assignment
// with its template and draft, attaching media evidence, and finalizing the
// answers into the submission queue.
package forms
