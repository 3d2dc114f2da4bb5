// Package evidence validates and canonicalizes raw pipeline input.
//
// Images (raw bytes, base64, or data URIs) are size-checked and sniffed with
// mimetype; URLs are reduced to a canonical form without tracking
// parameters; text is bounded and folded for keying. Normalization is pure:
// it never touches the network or the library. Failures are tagged
// services.ErrInvalidEvidence or services.ErrUnsupportedFormat.
package evidence
