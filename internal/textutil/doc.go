// Package textutil provides the text helpers used to match product names
// across evidence channels and to gate user corrections.
//
// The primary use cases are:
//   - Normalizing brand and name strings into comparable keys
//   - Creating token fingerprints and computing cosine similarity between them
//   - Counting alphanumeric characters in free-form user input
//
// Tokenization lowercases text, splits on non-alphanumeric characters, and
// drops single-character tokens unless they are digits, so model numbers
// such as "5" in "Phantom 5" still contribute.
package textutil
