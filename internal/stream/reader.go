package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
)

const readSize = 4096

// Reader pulls events from a streamed response body, one at a time.
type Reader struct {
	body    io.ReadCloser
	dec     *Decoder
	buf     []byte
	pending []result
	done    bool

	closeOnce sync.Once
	closeErr  error
}

// NewReader wraps body. The Reader owns body from here on and closes it when the stream ends or the context is cancelled.
func NewReader(body io.ReadCloser) *Reader {
	return &Reader{body: body, dec: NewDecoder(), buf: make([]byte, readSize)}
}

// Next returns the next event in stream order.
//
// A malformed frame yields a [*shared.ProtocolDecodeError]; the stream is still usable afterwards.
// io.EOF means the stream is over, either because a terminal event was already returned or because the body ended.
// Any other error is fatal and the body has been closed. Once ctx is cancelled, Next returns ctx.Err() even for frames already decoded.
func (r *Reader) Next(ctx context.Context) (models.ProgressEvent, error) {
	for {
		if err := ctx.Err(); err != nil {
			r.pending = nil
			r.Close()
			return models.ProgressEvent{}, err
		}
		if len(r.pending) > 0 {
			next := r.pending[0]
			r.pending = r.pending[1:]
			return next.event, next.err
		}
		if r.done {
			return models.ProgressEvent{}, io.EOF
		}

		// a Read blocked on the network only returns once the body is closed
		stop := context.AfterFunc(ctx, func() { r.Close() })
		n, err := r.body.Read(r.buf)
		stop()

		if ctxErr := ctx.Err(); ctxErr != nil {
			r.pending = nil
			r.Close()
			return models.ProgressEvent{}, ctxErr
		}
		if n > 0 {
			r.pending = append(r.pending, r.dec.decode(r.buf[:n])...)
			if r.dec.Done() {
				r.finish()
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.pending = append(r.pending, r.dec.flush()...)
			r.finish()
		case r.done:
			// terminal event already decoded, a late transport error changes nothing
		default:
			r.Close()
			return models.ProgressEvent{}, fmt.Errorf("failed to read progress stream: %w", err)
		}
	}
}

// All ranges over the remaining events. A fatal error is yielded once and ends the sequence; decode errors do not.
func (r *Reader) All(ctx context.Context) iter.Seq2[models.ProgressEvent, error] {
	return func(yield func(models.ProgressEvent, error) bool) {
		defer r.Close()

		for {
			event, err := r.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) {
				return
			}
			if err != nil && !IsDecodeError(err) {
				return
			}
		}
	}
}

// Close releases the body. It is safe to call more than once.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.body.Close() })
	return r.closeErr
}

func (r *Reader) finish() {
	r.done = true
	r.Close()
}

// IsDecodeError reports whether err is a recoverable malformed-frame error.
func IsDecodeError(err error) bool {
	var pde *shared.ProtocolDecodeError
	return errors.As(err, &pde)
}
