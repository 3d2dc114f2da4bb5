// Package main hosts the teed CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into pipeline calls:
// one-shot identification and multi-source extraction, correction
// submission, product library maintenance, configuration scaffolding, and
// the long-running HTTP server. Configuration resolution and logger setup
// live in the shared command context so subcommands only deal with flags and
// rendering.
//
// Add behavior to the internal packages first and surface it here through a
// dedicated command or flag.
package main
