// Package audio holds the per-session audio hand-off between the websocket
// reader and the recognition worker.
package audio

import (
	"context"

	"github.com/mrsingh-rishi/media-transcriber/model"
	"github.com/mrsingh-rishi/media-transcriber/queue"
)

// Buffer is an unbounded FIFO of audio chunks for one call session. The
// session's message loop pushes into it and the transcription worker pops
// from it. PushEnd enqueues the end-of-stream sentinel.
type Buffer struct {
	q *queue.Queue[model.AudioChunk]
}

// NewBuffer creates an empty, open Buffer.
func NewBuffer() *Buffer {
	return &Buffer{q: queue.New[model.AudioChunk]()}
}

// Push appends chunk and wakes a blocked reader. It returns queue.ErrClosed
// if PushEnd has already been called.
func (b *Buffer) Push(chunk model.AudioChunk) error {
	return b.q.Enqueue(chunk)
}

// PushEnd enqueues the end-of-stream sentinel. Calls after the first are no-ops.
func (b *Buffer) PushEnd() {
	b.q.Close()
}

// Pop blocks until a chunk is available. It returns io.EOF once every chunk
// pushed before PushEnd has been consumed, and ctx.Err() if ctx ends first.
func (b *Buffer) Pop(ctx context.Context) (model.AudioChunk, error) {
	return b.q.Dequeue(ctx)
}

// TryPop is the non-blocking form of Pop. ok is false when nothing is
// buffered; err is io.EOF past the sentinel.
func (b *Buffer) TryPop() (chunk model.AudioChunk, ok bool, err error) {
	return b.q.TryDequeue()
}

// Closed reports whether PushEnd has been called.
func (b *Buffer) Closed() bool {
	return b.q.Closed()
}

// Done is closed when PushEnd is called.
func (b *Buffer) Done() <-chan struct{} {
	return b.q.Done()
}

// Len returns the number of buffered chunks.
func (b *Buffer) Len() int {
	return b.q.Len()
}
