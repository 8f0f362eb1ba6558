package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/media-transcriber/model"
)

// DeepgramListenURL is the live transcription endpoint.
const DeepgramListenURL = "wss://api.deepgram.com/v1/listen"

// DeepgramClient streams audio to Deepgram's live transcription websocket.
type DeepgramClient struct {
	APIKey   string
	Endpoint string
	Model    string
	Dialer   *gws.Dialer
}

var _ Recognizer = (*DeepgramClient)(nil)

// for now we will use the phone call model by default
func NewDeepgramClient(apiKey string) *DeepgramClient {
	return &DeepgramClient{
		APIKey:   apiKey,
		Endpoint: DeepgramListenURL,
		Model:    "nova-2-phonecall",
		Dialer:   gws.DefaultDialer,
	}
}

// TranscriptionMessage is the subset of a Deepgram live response we read.
type TranscriptionMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float32 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (dg *DeepgramClient) StreamingRecognize(ctx context.Context, cfg Config) (Stream, error) {
	endpoint, err := dg.listenURL(cfg)
	if err != nil {
		return nil, err
	}
	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", dg.APIKey)},
	}
	dialer := dg.Dialer
	if dialer == nil {
		dialer = gws.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, errors.Wrap(err, "stt: deepgram dial")
	}

	s := &deepgramStream{conn: conn}
	// Unblocks Recv and Send when the attempt is cancelled.
	s.stop = context.AfterFunc(ctx, func() { conn.Close() })
	return s, nil
}

func (dg *DeepgramClient) listenURL(cfg Config) (string, error) {
	u, err := url.Parse(dg.Endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "stt: bad deepgram endpoint %q", dg.Endpoint)
	}
	q := u.Query()
	if dg.Model != "" {
		q.Set("model", dg.Model)
	}
	q.Set("encoding", strings.ToLower(cfg.Encoding))
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("language", cfg.Language)
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramStream struct {
	conn      *gws.Conn
	stop      func() bool
	closeOnce sync.Once
}

func (s *deepgramStream) Send(frame model.Frame) error {
	if len(frame) == 0 {
		return nil
	}
	return s.conn.WriteMessage(gws.BinaryMessage, frame)
}

// CloseSend asks Deepgram to flush its final results and close the socket.
func (s *deepgramStream) CloseSend() error {
	return s.conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *deepgramStream) Recv() (*Response, error) {
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		if gws.IsCloseError(err, gws.CloseNormalClosure) {
			return nil, io.EOF
		}
		return nil, err
	}
	resp, err := decodeDeepgramMessage(msg)
	if err != nil {
		// A message we cannot read is skipped, not a broken stream.
		return &Response{}, nil
	}
	return resp, nil
}

func (s *deepgramStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stop()
		_ = s.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "Closing connection"))
		err = s.conn.Close()
	})
	return err
}

// decodeDeepgramMessage maps a Deepgram message onto a Response. Anything
// other than a Results message (Metadata, SpeechStarted, UtteranceEnd) maps to
// an empty Response.
func decodeDeepgramMessage(msg []byte) (*Response, error) {
	var tm TranscriptionMessage
	if err := json.Unmarshal(msg, &tm); err != nil {
		return nil, errors.Wrap(err, "stt: parse deepgram response")
	}
	if tm.Type != "Results" {
		return &Response{}, nil
	}
	result := Result{IsFinal: tm.IsFinal}
	for _, alt := range tm.Channel.Alternatives {
		result.Alternatives = append(result.Alternatives, Alternative{
			Transcript: alt.Transcript,
			Confidence: alt.Confidence,
		})
	}
	return &Response{Results: []Result{result}}, nil
}
