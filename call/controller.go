// Package call runs one media stream websocket connection: it turns stream
// events into a session with an audio buffer and a transcription worker.
package call

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/media-transcriber/audio"
	"github.com/mrsingh-rishi/media-transcriber/stt"
	"github.com/mrsingh-rishi/media-transcriber/worker"
)

// DefaultShutdownTimeout bounds how long closing a session waits for its
// worker before stopping it.
const DefaultShutdownTimeout = 10 * time.Second

// MessageReader is the receive side of a websocket connection.
type MessageReader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

// Options configures a Controller.
type Options struct {
	Recognizer      stt.Recognizer
	Worker          worker.Options
	ShutdownTimeout time.Duration
	Logger          *log.Logger
}

// Session is one audio relay, from a start event to its closure.
type Session struct {
	ID        string
	CallSid   string
	StreamSid string
	Buffer    *audio.Buffer
	Worker    *worker.TranscriptionWorker

	closeOnce sync.Once
}

// Controller demultiplexes the events of one connection. It owns at most one
// open Session at a time.
type Controller struct {
	ws      MessageReader
	opts    Options
	logger  *log.Logger
	session *Session
}

// NewController returns a Controller reading from ws.
func NewController(ws MessageReader, opts Options) *Controller {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Controller{
		ws:     ws,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Session returns the most recent session, or nil before the first start event.
func (c *Controller) Session() *Session {
	return c.session
}

// Run reads messages until the stream ends and returns how many were
// received. Every exit path closes the current session.
func (c *Controller) Run() int {
	messages := 0
	defer func() {
		c.closeSession()
		c.logger.Info("connection closed", "messages", messages)
	}()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket closed normally", "err", err)
			} else {
				c.logger.Warn("websocket read error", "err", err)
			}
			return messages
		}
		messages++

		if stop := c.handle(msg); stop {
			return messages
		}
	}
}

// handle processes one message and reports whether the loop should stop.
func (c *Controller) handle(msg []byte) bool {
	var ev twilioEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		c.logger.Warn("dropping malformed message", "err", err)
		return false
	}

	switch ev.Event {
	case EventConnected:
		c.logger.Info("connected", "protocol", ev.Protocol, "version", ev.Version)

	case EventStart:
		c.startSession(ev)

	case EventMedia:
		c.pushMedia(ev.Media.Payload)

	case EventStop, EventClosed:
		c.logger.Info("stream stopped", "event", ev.Event)
		return true

	case EventMark:
		c.logger.Debug("mark")

	default:
		c.logger.Debug("unknown event", "event", ev.Event)
	}
	return false
}

func (c *Controller) startSession(ev twilioEvent) {
	if c.session != nil {
		c.logger.Warn("start received with a session open, replacing it", "session", c.session.ID)
		c.closeSession()
	}

	id := uuid.NewString()
	logger := c.logger.With("session", id)
	buf := audio.NewBuffer()

	wopts := c.opts.Worker
	wopts.Logger = logger
	tw := worker.NewTranscriptionWorker(c.opts.Recognizer, buf, wopts)

	c.session = &Session{
		ID:        id,
		CallSid:   ev.Start.CallSid,
		StreamSid: ev.Start.StreamSid,
		Buffer:    buf,
		Worker:    tw,
	}
	logger.Info("stream started", "callSid", ev.Start.CallSid, "streamSid", ev.Start.StreamSid,
		"encoding", ev.Start.MediaFormat.Encoding, "sampleRate", ev.Start.MediaFormat.SampleRate)
	tw.Start()
}

func (c *Controller) pushMedia(payload string) {
	s := c.session
	if s == nil || s.Buffer.Closed() {
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		c.logger.Warn("dropping undecodable media", "err", err)
		return
	}
	if err := s.Buffer.Push(chunk); err != nil {
		// Closed under us by the exit keyword.
		c.logger.Debug("dropping media", "session", s.ID, "err", err)
	}
}

func (c *Controller) closeSession() {
	if c.session != nil {
		c.session.Close(c.opts.ShutdownTimeout)
	}
}

// Close ends the session: it pushes the end-of-stream sentinel and waits up
// to timeout for the worker to drain, after which the worker is stopped.
// Only the first call has an effect.
func (s *Session) Close(timeout time.Duration) {
	s.closeOnce.Do(func() {
		s.Buffer.PushEnd()
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-s.Worker.Done():
		case <-timer.C:
			s.Worker.Stop()
			<-s.Worker.Done()
		}
	})
}
