// Package tasks runs the license entry workflow with real-time progress reporting.
//
// # Core Operations
//
// [EntryEngine] exposes two operations:
//
//  1. [EntryEngine.Create] : Create a single entry
//     - Normalizes and validates the entry
//     - Obtains tokens from the [TokenSource] (normally a tokens.Cache)
//     - Submits the entry and follows the progress stream to its terminal event
//     - Returns the provider id, or a typed error naming the stage that failed
//
//  2. [EntryEngine.Batch] : Create many entries
//     - Worker pool with a rate limiter on submissions
//     - Workers share the token source, so one fetch serves the whole batch
//     - Failures are recorded per entry and never retried
//     - Optionally writes a CSV or text report
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, backend-reported percentage, messages, and optional data
// for advanced UI rendering. Updates use select with default to prevent blocking, so a slow reader may miss
// intermediate updates but never stalls the stream.
//
// # Malformed Frames
//
// By default a frame that fails to decode stops the operation with a shared.ProtocolDecodeError.
// An engine built with [WithLenient] logs the frame, emits a [PhaseMalformed] update, and keeps going.
package tasks
