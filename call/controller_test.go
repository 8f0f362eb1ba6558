package call

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/media-transcriber/stt"
	"github.com/mrsingh-rishi/media-transcriber/stt/stttest"
	"github.com/mrsingh-rishi/media-transcriber/worker"
)

const waitTimeout = 2 * time.Second

// chanReader serves messages from a channel. Once the channel is closed it
// returns err, or io.EOF when err is nil.
type chanReader struct {
	msgs chan []byte
	err  error
}

func newChanReader(msgs ...string) *chanReader {
	r := &chanReader{msgs: make(chan []byte, len(msgs)+16)}
	for _, m := range msgs {
		r.msgs <- []byte(m)
	}
	return r
}

func (r *chanReader) ReadMessage() (int, []byte, error) {
	msg, ok := <-r.msgs
	if !ok {
		if r.err != nil {
			return 0, nil, r.err
		}
		return 0, nil, io.EOF
	}
	return 1, msg, nil
}

func startEvent(callSid string) string {
	return fmt.Sprintf(`{"event":"start","start":{"callSid":%q,"streamSid":"MZ1","mediaFormat":{"encoding":"audio/x-mulaw","sampleRate":8000,"channels":1}}}`, callSid)
}

func mediaEvent(payload string) string {
	return fmt.Sprintf(`{"event":"media","media":{"track":"inbound","payload":%q}}`, base64.StdEncoding.EncodeToString([]byte(payload)))
}

func testOptions(rec *stttest.Recognizer) Options {
	return Options{
		Recognizer: rec,
		Worker: worker.Options{
			ReconnectDelay: 10 * time.Millisecond,
			Output:         io.Discard,
		},
		ShutdownTimeout: waitTimeout,
		Logger:          log.New(io.Discard),
	}
}

func runAsync(c *Controller) <-chan int {
	res := make(chan int, 1)
	go func() { res <- c.Run() }()
	return res
}

func waitRun(t *testing.T, res <-chan int) int {
	t.Helper()
	select {
	case n := <-res:
		return n
	case <-time.After(waitTimeout):
		t.Fatal("controller did not return")
		return 0
	}
}

func TestController_RelaysAudioInOrder(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(
		`{"event":"connected","protocol":"Call","version":"1.0.0"}`,
		startEvent("CA1"),
		mediaEvent("P1"),
		mediaEvent("P2"),
		mediaEvent("P3"),
		`{"event":"closed"}`,
	)
	c := NewController(r, testOptions(rec))

	n := c.Run()
	assert.Equal(t, 6, n)

	s := c.Session()
	require.NotNil(t, s)
	assert.Equal(t, "CA1", s.CallSid)
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.Buffer.Closed())
	select {
	case <-s.Worker.Done():
	default:
		t.Fatal("worker still running after Run returned")
	}
	assert.Equal(t, "P1P2P3", string(rec.Audio()))
	assert.Equal(t, 1, rec.Calls())
}

func TestController_StopEventEndsLoop(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(startEvent("CA1"), mediaEvent("a"), `{"event":"stop"}`, mediaEvent("late"))
	c := NewController(r, testOptions(rec))

	assert.Equal(t, 3, c.Run())
	assert.Equal(t, "a", string(rec.Audio()))
}

func TestController_DropsMediaBeforeStart(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(mediaEvent("early"), `{"event":"closed"}`)
	c := NewController(r, testOptions(rec))

	assert.Equal(t, 2, c.Run())
	assert.Nil(t, c.Session())
	assert.Equal(t, 0, rec.Calls())
}

func TestController_SkipsBadMessages(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(
		startEvent("CA1"),
		`not json`,
		`{"event":"dtmf","dtmf":{"digit":"1"}}`,
		`{"event":"media","media":{"payload":"%%%not-base64"}}`,
		`{"event":"mark","mark":{"name":"m"}}`,
		mediaEvent("ok"),
		`{"event":"closed"}`,
	)
	c := NewController(r, testOptions(rec))

	assert.Equal(t, 7, c.Run())
	assert.Equal(t, "ok", string(rec.Audio()))
}

func TestController_ReadErrorClosesSession(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(startEvent("CA1"), mediaEvent("x"))
	r.err = errors.New("connection reset by peer")
	close(r.msgs)
	c := NewController(r, testOptions(rec))

	assert.Equal(t, 2, c.Run())
	s := c.Session()
	require.NotNil(t, s)
	assert.True(t, s.Buffer.Closed())
	assert.Equal(t, "x", string(rec.Audio()))
}

func TestController_SecondStartReplacesSession(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(startEvent("CA1"))
	c := NewController(r, testOptions(rec))
	res := runAsync(c)

	first := <-rec.Opened
	r.msgs <- []byte(mediaEvent("one"))
	r.msgs <- []byte(startEvent("CA2"))
	second := <-rec.Opened
	r.msgs <- []byte(mediaEvent("two"))
	r.msgs <- []byte(`{"event":"closed"}`)
	waitRun(t, res)

	assert.Equal(t, "one", string(first.Audio()))
	assert.Equal(t, "two", string(second.Audio()))
	assert.Equal(t, "CA2", c.Session().CallSid)
	assert.Equal(t, 2, rec.Calls())
}

func TestController_DropsMediaAfterExitKeyword(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(startEvent("CA1"))
	c := NewController(r, testOptions(rec))
	res := runAsync(c)

	s := <-rec.Opened
	s.Final("ok quit")

	// Set before the worker started.
	sess := c.Session()
	select {
	case <-sess.Worker.Done():
	case <-time.After(waitTimeout):
		t.Fatal("worker did not exit on the keyword")
	}

	r.msgs <- []byte(mediaEvent("ignored"))
	close(r.msgs)
	waitRun(t, res)

	assert.Equal(t, 0, sess.Buffer.Len())
	assert.Empty(t, rec.Audio())
}

// hangingRecognizer never opens a stream until its context is cancelled.
type hangingRecognizer struct {
	calls chan struct{}
}

func (h *hangingRecognizer) StreamingRecognize(ctx context.Context, _ stt.Config) (stt.Stream, error) {
	h.calls <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSession_CloseStopsStuckWorker(t *testing.T) {
	hr := &hangingRecognizer{calls: make(chan struct{}, 4)}
	opts := testOptions(nil)
	opts.Recognizer = hr
	opts.ShutdownTimeout = 20 * time.Millisecond
	r := newChanReader(startEvent("CA1"))
	c := NewController(r, opts)
	res := runAsync(c)

	<-hr.calls
	close(r.msgs)
	waitRun(t, res)

	select {
	case <-c.Session().Worker.Done():
	default:
		t.Fatal("worker running after Close")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	rec := stttest.NewRecognizer()
	r := newChanReader(startEvent("CA1"), `{"event":"closed"}`)
	c := NewController(r, testOptions(rec))
	c.Run()

	s := c.Session()
	s.Close(time.Millisecond)
	s.Close(time.Millisecond)
	assert.True(t, s.Buffer.Closed())
}
