package stt

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/mrsingh-rishi/media-transcriber/model"
)

// GoogleRecognizer streams audio to Google Cloud Speech-to-Text.
type GoogleRecognizer struct {
	client *speech.Client
}

var _ Recognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a speech client. If credentialsFile is empty
// the client falls back to application default credentials.
func NewGoogleRecognizer(ctx context.Context, credentialsFile string) (*GoogleRecognizer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "stt: create google speech client")
	}
	return &GoogleRecognizer{client: client}, nil
}

// StreamingRecognize opens a stream and sends the streaming configuration as
// its first request.
func (r *GoogleRecognizer) StreamingRecognize(ctx context.Context, cfg Config) (Stream, error) {
	stream, err := r.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "stt: open google stream")
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: googleStreamingConfig(cfg),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "stt: send google streaming config")
	}
	return &googleStream{stream: stream}, nil
}

// Close releases the underlying gRPC connection.
func (r *GoogleRecognizer) Close() error {
	return r.client.Close()
}

func googleStreamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:        googleEncoding(cfg.Encoding),
			SampleRateHertz: int32(cfg.SampleRate),
			LanguageCode:    cfg.Language,
		},
		InterimResults: cfg.InterimResults,
	}
}

func googleEncoding(enc string) speechpb.RecognitionConfig_AudioEncoding {
	switch enc {
	case EncodingMulaw:
		return speechpb.RecognitionConfig_MULAW
	case EncodingLinear16:
		return speechpb.RecognitionConfig_LINEAR16
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

type googleStream struct {
	stream speechpb.Speech_StreamingRecognizeClient
}

func (s *googleStream) Send(frame model.Frame) error {
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	})
}

func (s *googleStream) CloseSend() error {
	return s.stream.CloseSend()
}

func (s *googleStream) Recv() (*Response, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, status.ErrorProto(resp.Error)
	}
	return fromGoogleResponse(resp), nil
}

// Close is a no-op; the stream is torn down by cancelling its context.
func (s *googleStream) Close() error {
	return nil
}

func fromGoogleResponse(resp *speechpb.StreamingRecognizeResponse) *Response {
	out := &Response{Results: make([]Result, 0, len(resp.Results))}
	for _, r := range resp.Results {
		result := Result{IsFinal: r.IsFinal}
		for _, alt := range r.Alternatives {
			result.Alternatives = append(result.Alternatives, Alternative{
				Transcript: alt.Transcript,
				Confidence: alt.Confidence,
			})
		}
		out.Results = append(out.Results, result)
	}
	return out
}
