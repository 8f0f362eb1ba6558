package audio

import (
	"context"
	"io"
	"iter"

	"github.com/mrsingh-rishi/media-transcriber/model"
)

// FrameGenerator turns a Buffer into a sequence of recognizer frames.
//
// Each frame is built from one blocking pop followed by a non-blocking drain
// of whatever else is already buffered, so frames grow under load without
// ever waiting for more audio. Generators are cheap; create one per
// recognition attempt.
type FrameGenerator struct {
	buf  *Buffer
	done bool
}

// NewFrameGenerator returns a generator reading from buf.
func NewFrameGenerator(buf *Buffer) *FrameGenerator {
	return &FrameGenerator{buf: buf}
}

// Next returns the next frame. It returns io.EOF once the sentinel has been
// reached, and ctx.Err() if ctx ends while waiting for the first chunk.
func (g *FrameGenerator) Next(ctx context.Context) (model.Frame, error) {
	if g.done {
		return nil, io.EOF
	}
	chunk, err := g.buf.Pop(ctx)
	if err != nil {
		if err == io.EOF {
			g.done = true
		}
		return nil, err
	}

	frame := append(model.Frame(nil), chunk...)
	for {
		chunk, ok, err := g.buf.TryPop()
		if err == io.EOF {
			// Hand out what was drained; the next call reports EOF.
			g.done = true
			break
		}
		if !ok {
			break
		}
		frame = append(frame, chunk...)
	}
	return frame, nil
}

// All returns the frames as an iterator. Iteration stops at the sentinel or
// when ctx ends.
func (g *FrameGenerator) All(ctx context.Context) iter.Seq[model.Frame] {
	return func(yield func(model.Frame) bool) {
		for {
			frame, err := g.Next(ctx)
			if err != nil {
				return
			}
			if !yield(frame) {
				return
			}
		}
	}
}
