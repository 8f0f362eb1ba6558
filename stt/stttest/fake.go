// Package stttest provides an in-memory stt.Recognizer for tests.
package stttest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/mrsingh-rishi/media-transcriber/model"
	"github.com/mrsingh-rishi/media-transcriber/stt"
)

// Recognizer records every streaming call opened against it. Tests receive
// the opened streams from Opened and script their responses.
type Recognizer struct {
	// Opened receives each stream as it is opened.
	Opened chan *Stream

	mu      sync.Mutex
	openErr []error
	streams []*Stream
	configs []stt.Config
}

var _ stt.Recognizer = (*Recognizer)(nil)

// NewRecognizer returns a Recognizer whose first len(openErrs) calls fail
// with the given errors, in order.
func NewRecognizer(openErrs ...error) *Recognizer {
	return &Recognizer{
		Opened:  make(chan *Stream, 16),
		openErr: openErrs,
	}
}

func (r *Recognizer) StreamingRecognize(ctx context.Context, cfg stt.Config) (stt.Stream, error) {
	r.mu.Lock()
	r.configs = append(r.configs, cfg)
	if len(r.openErr) > 0 {
		err := r.openErr[0]
		r.openErr = r.openErr[1:]
		r.mu.Unlock()
		return nil, err
	}
	s := newStream(ctx)
	r.streams = append(r.streams, s)
	r.mu.Unlock()

	r.Opened <- s
	return s, nil
}

// Calls returns the number of StreamingRecognize calls, failed ones included.
func (r *Recognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

// Configs returns the configuration of every call so far.
func (r *Recognizer) Configs() []stt.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stt.Config(nil), r.configs...)
}

// Audio returns the audio sent across all streams, in order.
func (r *Recognizer) Audio() []byte {
	r.mu.Lock()
	streams := append([]*Stream(nil), r.streams...)
	r.mu.Unlock()
	var all bytes.Buffer
	for _, s := range streams {
		all.Write(s.Audio())
	}
	return all.Bytes()
}

type recvItem struct {
	resp *stt.Response
	err  error
}

// Stream is one fake streaming call. Recv returns scripted responses; after
// CloseSend, and once scripted responses are used up, it returns io.EOF.
type Stream struct {
	ctx context.Context

	// Sent receives every frame passed to Send.
	Sent chan model.Frame

	recv       chan recvItem
	sendClosed chan struct{}
	closeOnce  sync.Once

	mu     sync.Mutex
	audio  bytes.Buffer
	closed bool
}

func newStream(ctx context.Context) *Stream {
	return &Stream{
		ctx:        ctx,
		Sent:       make(chan model.Frame, 256),
		recv:       make(chan recvItem, 64),
		sendClosed: make(chan struct{}),
	}
}

// Respond queues a response for Recv.
func (s *Stream) Respond(resp *stt.Response) {
	s.recv <- recvItem{resp: resp}
}

// Interim queues an interim result carrying transcript.
func (s *Stream) Interim(transcript string) {
	s.Respond(result(transcript, false))
}

// Final queues a final result carrying transcript.
func (s *Stream) Final(transcript string) {
	s.Respond(result(transcript, true))
}

// Fail makes the next Recv return err.
func (s *Stream) Fail(err error) {
	s.recv <- recvItem{err: err}
}

// SendClosed is closed once CloseSend has been called.
func (s *Stream) SendClosed() <-chan struct{} {
	return s.sendClosed
}

// Audio returns everything sent on this stream.
func (s *Stream) Audio() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.audio.Bytes()...)
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) Send(frame model.Frame) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.audio.Write(frame)
	s.mu.Unlock()
	select {
	case s.Sent <- frame:
	default:
	}
	return nil
}

func (s *Stream) CloseSend() error {
	s.closeOnce.Do(func() { close(s.sendClosed) })
	return nil
}

func (s *Stream) Recv() (*stt.Response, error) {
	// Scripted items win over end-of-stream.
	select {
	case it := <-s.recv:
		return it.resp, it.err
	default:
	}
	select {
	case it := <-s.recv:
		return it.resp, it.err
	case <-s.sendClosed:
		select {
		case it := <-s.recv:
			return it.resp, it.err
		default:
			return nil, io.EOF
		}
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func result(transcript string, final bool) *stt.Response {
	return &stt.Response{Results: []stt.Result{{
		IsFinal:      final,
		Alternatives: []stt.Alternative{{Transcript: transcript}},
	}}}
}
