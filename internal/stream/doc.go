// Package stream decodes the progress stream returned by the create-licence-entry endpoint.
//
// The body is a sequence of frames separated by a blank line:
//
//	data: {'progress': 5, 'step': 'start', 'message': 'Starting license retrieval process...'}
//
//	data: {'progress': 100, 'step': 'complete', 'message': 'Process completed successfully!', 'userId': '42'}
//
// Frames that do not start with "data: " are ignored. A "complete" or "error"
// event ends the stream.
//
// [Decoder] is push-based and works on raw chunks. [Reader] wraps a response
// body and hands out one event per call to [Reader.Next].
package stream
