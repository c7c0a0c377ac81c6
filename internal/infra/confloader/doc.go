// Package confloader loads operator configuration.
//
// It is a thin layer over koanf. A YAML file is read first, environment
// variables override it, and an overrides map (command-line flags) sits on
// top. Watcher reports changes to the configuration file so that a
// long-running sweeper can apply them without a restart.
//
// Environment variables use the SESSFILE_ prefix and a double underscore
// between nesting levels, so single underscores survive inside keys:
//
//	SESSFILE_SWEEP__INTERVAL=30s       -> sweep.interval
//	SESSFILE_STORE__TEMP_MAX_AGE=2h    -> store.temp_max_age
package confloader
