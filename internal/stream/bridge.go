// Package stream bridges a blocking token iterator onto an async channel of
// tagged chunks for SSE delivery.
package stream

import (
	"context"
	"io"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
)

const (
	defaultBuffer      = 32
	defaultSendTimeout = 120 * time.Second
)

// Options tune the bridge worker.
type Options struct {
	// Buffer is the channel capacity. Zero means the default.
	Buffer int
	// SendTimeout bounds how long the worker waits on a slow consumer
	// before abandoning the stream. Zero means the default.
	SendTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Buffer <= 0 {
		o.Buffer = defaultBuffer
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
	return o
}

// Bridge drains tokens from ts on a worker goroutine and delivers them as
// chunks. The channel always terminates with a done chunk (preceded by an
// error chunk on failure) and is then closed; ts is closed by the worker.
// Cancelling ctx or stalling past the send timeout abandons the stream
// without leaking the worker.
func Bridge(ctx context.Context, ts provider.TokenStream, opts Options) <-chan models.StreamChunk {
	opts = opts.withDefaults()
	out := make(chan models.StreamChunk, opts.Buffer)

	go func() {
		defer close(out)
		defer ts.Close()

		timer := time.NewTimer(opts.SendTimeout)
		defer timer.Stop()

		send := func(chunk models.StreamChunk) bool {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(opts.SendTimeout)
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			case <-timer.C:
				return false
			}
		}

		for {
			token, err := ts.Next()
			if err == io.EOF {
				send(models.DoneChunk())
				return
			}
			if err != nil {
				if !send(models.ErrorChunk(err.Error())) {
					return
				}
				send(models.DoneChunk())
				return
			}
			if token == "" {
				continue
			}
			if !send(models.TextChunk(token)) {
				return
			}
		}
	}()

	return out
}
