// Package runner executes the external transformation tool against region
// text and captures the result.
//
// Each run invokes the tool once through the shell, with the generated
// program as a single-quoted argument and the region text on standard
// input. Standard output and standard error are captured into separate
// buffers and the numeric exit status is reported.
//
// A nonzero exit status is data, not an error: the [Result] carries the
// captured stderr and the status, and the caller routes them to the error
// display. Result.Err is reserved for failures to execute at all (tool not
// found, context canceled).
//
// [Runner.Run] is synchronous but remains responsive to cancellation:
// the wait happens in a goroutine while the caller selects on the context.
// [Runner.Go] is the asynchronous form used by the session controller so
// the editing surface's event loop is never blocked while a run is
// outstanding.
package runner
