// Package learning records user corrections that pass a quality gate and
// uses them to bias future identifications.
//
// Submissions never fail the caller. A correction that fails the gate is
// dropped with a reason, and one that passes is written by a background task
// whose failures are only logged. Biaser rewrites a candidate's name or brand
// once enough accepted corrections agree on the replacement.
package learning
