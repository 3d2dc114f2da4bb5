// Package background runs fire-and-forget side writes such as library cache
// population, hit recording, and correction logging.
//
// Tasks are detached from the caller's cancellation but keep its values, so
// request ids still reach the logs. Failures never flow back to the request
// path: they are logged as warnings and handed to an optional error hook.
// Close waits for in-flight tasks so the CLI and server can drain on exit.
package background
