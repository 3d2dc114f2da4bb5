// Package httpapi exposes the pipeline over HTTP with gin.
//
// Routes live under /api/v1 plus an unauthenticated /health probe. Every
// request gets an X-Request-ID that is echoed in responses and threaded into
// pipeline logs. Partial failures come back as 200 with warnings; only
// rejected evidence and configuration problems produce error statuses.
package httpapi
