// Package cmd implements the command-line interface of kvmig. It provides a
// hierarchical command structure for running the server, interacting with the
// store and running migrations against it.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the kvmig server
//   - kv: Commands for single store operations (get, set, hget, rename, keys, ...)
//   - migrate: Creates, validates and runs migration files (create, validate, up, down)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable KVMIG_<FLAG> (e.g. KVMIG_TIMEOUT=15),
// .env and .env.local files are loaded on startup.
//
// See kvmig -help for a list of all commands.
package cmd
