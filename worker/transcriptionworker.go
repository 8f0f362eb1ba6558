package worker

import (
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mrsingh-rishi/media-transcriber/audio"
	"github.com/mrsingh-rishi/media-transcriber/output"
	"github.com/mrsingh-rishi/media-transcriber/stt"
)

// DefaultReconnectDelay is the pause between a failed stream and the next one.
const DefaultReconnectDelay = 5 * time.Second

// Options configures a TranscriptionWorker. Zero values get defaults.
type Options struct {
	Config         stt.Config
	ReconnectDelay time.Duration
	Output         io.Writer
	Logger         *log.Logger
}

// TranscriptionWorker streams one session's audio buffer to a recognizer,
// prints what comes back, and reopens the stream whenever it fails or ends
// while the session is still open.
type TranscriptionWorker struct {
	recognizer stt.Recognizer
	buffer     *audio.Buffer
	cfg        stt.Config
	delay      time.Duration
	out        io.Writer
	logger     *log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	attempts atomic.Int64
}

// NewTranscriptionWorker creates a worker reading from buffer. Call Start to
// run it.
func NewTranscriptionWorker(recognizer stt.Recognizer, buffer *audio.Buffer, opts Options) *TranscriptionWorker {
	if opts.Config == (stt.Config{}) {
		opts.Config = stt.PhoneCallConfig("")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TranscriptionWorker{
		recognizer: recognizer,
		buffer:     buffer,
		cfg:        opts.Config,
		delay:      opts.ReconnectDelay,
		out:        opts.Output,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Start begins the worker's processing loop in its own goroutine.
func (tw *TranscriptionWorker) Start() {
	go tw.run()
}

// Stop cancels the worker, aborting any in-flight stream. The usual way to
// end a session is PushEnd on its buffer; Stop is the fallback.
func (tw *TranscriptionWorker) Stop() {
	tw.cancel()
}

// Done is closed when the worker has exited.
func (tw *TranscriptionWorker) Done() <-chan struct{} {
	return tw.done
}

// Attempts returns how many streaming calls have been opened or tried.
func (tw *TranscriptionWorker) Attempts() int {
	return int(tw.attempts.Load())
}

func (tw *TranscriptionWorker) run() {
	defer close(tw.done)
	defer tw.cancel()

	for {
		outcome := tw.stream()
		if !outcome.Retry() {
			tw.logger.Debug("transcription stopped", "outcome", outcome)
			return
		}
		if tw.buffer.Closed() {
			tw.logger.Debug("session closed, not reconnecting", "outcome", outcome)
			return
		}

		tw.logger.Info("reconnecting", "outcome", outcome, "delay", tw.delay)
		timer := time.NewTimer(tw.delay)
		select {
		case <-timer.C:
		case <-tw.buffer.Done():
			timer.Stop()
			return
		case <-tw.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// stream runs one recognition attempt from open to close.
func (tw *TranscriptionWorker) stream() Outcome {
	n := tw.attempts.Add(1)
	logger := tw.logger.With("attempt", n)

	ctx, cancel := context.WithCancel(tw.ctx)
	defer cancel()

	stream, err := tw.recognizer.StreamingRecognize(ctx, tw.cfg)
	if err != nil {
		outcome := Classify(tw.ctx, err)
		logger.Warn("open stream failed", "err", err, "code", statusCode(err), "outcome", outcome)
		return outcome
	}
	logger.Debug("stream open")

	sendDone := make(chan struct{})
	go func() {
		defer close(sendDone)
		tw.send(ctx, cancel, stream, logger)
	}()

	outcome := tw.receive(stream, logger)
	if outcome == Terminated {
		tw.buffer.PushEnd()
	}

	cancel()
	<-sendDone
	if err := stream.Close(); err != nil {
		logger.Debug("close stream", "err", err)
	}
	return outcome
}

// send pumps frames into the stream until the buffer ends or the attempt is
// cancelled. Only this goroutine calls Send and CloseSend.
func (tw *TranscriptionWorker) send(ctx context.Context, cancel context.CancelFunc, stream stt.Stream, logger *log.Logger) {
	frames := audio.NewFrameGenerator(tw.buffer)
	for {
		frame, err := frames.Next(ctx)
		if err == io.EOF {
			if err := stream.CloseSend(); err != nil {
				logger.Debug("close send", "err", err)
			}
			return
		}
		if err != nil {
			return
		}
		if err := stream.Send(frame); err != nil {
			logger.Warn("send audio failed", "err", err, "bytes", len(frame))
			cancel()
			return
		}
	}
}

// receive consumes responses in order and prints the top alternative of the
// first result of each one.
func (tw *TranscriptionWorker) receive(stream stt.Stream, logger *log.Logger) Outcome {
	transcript := output.NewTranscript(tw.out)
	for {
		resp, err := stream.Recv()
		if err != nil {
			outcome := Classify(tw.ctx, err)
			if outcome == Transient {
				logger.Warn("stream failed", "err", err, "code", statusCode(err))
			}
			return outcome
		}

		result, ok := topResult(resp)
		if !ok {
			continue
		}
		text := result.Alternatives[0].Transcript

		if !result.IsFinal {
			if err := transcript.Interim(text); err != nil {
				logger.Debug("write interim", "err", err)
			}
			continue
		}

		exit, err := transcript.Final(text)
		if err != nil {
			logger.Debug("write final", "err", err)
		}
		if exit {
			logger.Info("exit keyword heard", "transcript", text)
			return Terminated
		}
	}
}

// topResult returns the first result of resp if it has an alternative.
func topResult(resp *stt.Response) (stt.Result, bool) {
	if resp == nil || len(resp.Results) == 0 {
		return stt.Result{}, false
	}
	result := resp.Results[0]
	if len(result.Alternatives) == 0 {
		return stt.Result{}, false
	}
	return result, true
}
