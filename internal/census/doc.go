// Package census enumerates the physically distinct objects visible in an
// image without naming brands or models.
//
// A census is a single low-detail vision call. Its only job is counting and
// locating; naming happens later in the identify package. A failed census is
// reported as Known=false ("unknown count"), never as zero objects, so the
// completeness check can tell "scanned and found nothing" from "could not scan".
package census
