// Package sqlitestore opens the SQLite databases that back the product library
// and the correction log.
//
// Each database carries an embedded schema and a schema_version row. Opening a
// database with a different recorded version fails with ErrSchemaMismatch so
// stale files are never read with the wrong column layout. Writes go through
// Exec, which retries SQLITE_BUSY with a short exponential backoff.
package sqlitestore
