// Package config loads and validates fieldsync configuration.
//
// Configuration is read from a TOML file (default
// ~/.config/fieldsync/config.toml) layered over repository defaults. All
// path fields are expanded and normalized during Load so the rest of the
// codebase only ever sees absolute paths.
package config
