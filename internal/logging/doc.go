// Package logging builds slog loggers for the fieldsync CLI and daemon.
//
// Two output formats are supported: a human-oriented console format used by
// the CLI and a JSON format used when daemon logs are shipped elsewhere.
// Helpers in this package keep attribute keys consistent across components so
// log lines for one assignment can be correlated end to end.
package logging
