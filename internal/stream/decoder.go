package stream

import (
	"bytes"
	"errors"
	"strings"

	"github.com/desertthunder/licentry/internal/models"
)

// result is one decoded frame: an event, or the error that frame produced.
type result struct {
	event models.ProgressEvent
	err   error
}

// Decoder turns arbitrarily split chunks of the progress stream into events.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf  []byte
	done bool
}

// NewDecoder returns an empty [Decoder].
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode appends chunk to the buffer and returns every event it completes, in order.
//
// Malformed frames do not stop decoding: their errors are joined and returned alongside the events from the same chunk.
// Once a terminal event has been returned, further input is discarded.
func (d *Decoder) Decode(chunk []byte) ([]models.ProgressEvent, error) {
	return split(d.decode(chunk))
}

// Flush parses whatever is left in the buffer as a final frame. Call it once the transport reports end-of-stream.
func (d *Decoder) Flush() ([]models.ProgressEvent, error) {
	return split(d.flush())
}

// Done reports whether a terminal event has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) decode(chunk []byte) []result {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var out []result
	for !d.done {
		i := bytes.Index(d.buf, []byte(FrameSeparator))
		if i < 0 {
			break
		}
		frame := string(d.buf[:i])
		d.buf = d.buf[i+len(FrameSeparator):]
		out = d.emit(out, frame)
	}
	if d.done {
		d.buf = nil
	}
	return out
}

func (d *Decoder) flush() []result {
	if d.done {
		return nil
	}
	frame := string(d.buf)
	d.buf = nil
	return d.emit(nil, frame)
}

func (d *Decoder) emit(out []result, frame string) []result {
	// runs of blank lines leave newline-only fragments in front of the next frame
	frame = strings.TrimLeft(frame, "\r\n")
	if frame == "" {
		return out
	}

	event, ok, err := ParseFrame(frame)
	switch {
	case !ok:
		return out
	case err != nil:
		return append(out, result{err: err})
	}

	if event.Terminal() {
		d.done = true
	}
	return append(out, result{event: event})
}

func split(results []result) ([]models.ProgressEvent, error) {
	var (
		events []models.ProgressEvent
		errs   []error
	)
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		events = append(events, r.event)
	}
	return events, errors.Join(errs...)
}
