// Package library implements the product library: a content-addressed cache
// mapping a normalized query (canonical URL or canonical text) to the last
// resolved identification.
//
// Entries are created by write-through after an inference resolution and are
// updated on every cache hit (hit count and last hit time). The pipeline never
// deletes entries; Remove and Clear exist for operators via the CLI.
//
// Two backends implement Store: SQLite (default, modernc.org/sqlite) and Redis
// hashes for deployments that share one library across processes.
package library
