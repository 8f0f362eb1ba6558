// Package stt defines the streaming speech recognition contract used by the
// transcription worker, together with its Google Cloud Speech and Deepgram
// implementations.
package stt

import (
	"context"

	"github.com/mrsingh-rishi/media-transcriber/model"
)

// Audio encodings understood by the recognizers.
const (
	EncodingMulaw    = "MULAW"
	EncodingLinear16 = "LINEAR16"
)

// Config is the fixed configuration sent when a streaming call is opened.
type Config struct {
	Encoding       string
	SampleRate     int
	Language       string
	InterimResults bool
}

// PhoneCallConfig is the configuration for Twilio media streams: 8kHz
// mu-law, interim results on.
func PhoneCallConfig(language string) Config {
	if language == "" {
		language = "en-US"
	}
	return Config{
		Encoding:       EncodingMulaw,
		SampleRate:     8000,
		Language:       language,
		InterimResults: true,
	}
}

// Alternative is one candidate transcript. Alternatives are ordered best first.
type Alternative struct {
	Transcript string
	Confidence float32
}

// Result is the recognition state of one utterance.
type Result struct {
	IsFinal      bool
	Alternatives []Alternative
}

// Response is one event received on a recognition stream. It may carry no
// results at all.
type Response struct {
	Results []Result
}

// Stream is one open streaming recognition call.
//
// Send and CloseSend must be called from a single goroutine. Recv may be
// called concurrently with Send. Recv returns io.EOF when the service has
// finished sending responses.
type Stream interface {
	Send(frame model.Frame) error
	CloseSend() error
	Recv() (*Response, error)
	Close() error
}

// Recognizer opens streaming recognition calls. Cancelling ctx aborts the
// returned stream.
type Recognizer interface {
	StreamingRecognize(ctx context.Context, cfg Config) (Stream, error)
}
