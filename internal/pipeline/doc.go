// Package pipeline wires the identification stages into request-level
// operations shared by the CLI and the HTTP server.
//
// A Pipeline is built once from explicit dependencies. Identify normalizes
// the evidence batch, runs census and identification per item concurrently,
// enriches the results, then scores completeness and validation. Only batch
// normalization fails a request; every later failure becomes a warning.
// Close drains best-effort background writes.
package pipeline
