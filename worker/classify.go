package worker

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Outcome is how one streaming recognition attempt ended.
type Outcome int

const (
	// Exhausted means the service closed the stream cleanly.
	Exhausted Outcome = iota
	// Transient is a transport failure that is worth retrying.
	Transient
	// Cancelled means the worker itself was stopped.
	Cancelled
	// Terminated means the caller asked to end the session.
	Terminated
)

func (o Outcome) String() string {
	switch o {
	case Exhausted:
		return "exhausted"
	case Transient:
		return "transient"
	case Cancelled:
		return "cancelled"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Retry reports whether the worker should open a new stream after o, as
// long as the session is still open.
func (o Outcome) Retry() bool {
	return o == Exhausted || o == Transient
}

// Classify maps the error that ended an attempt to an Outcome. ctx is the
// worker's context, not the attempt's.
//
// Every error other than end-of-stream and worker shutdown is treated as
// transient, whatever its gRPC code.
func Classify(ctx context.Context, err error) Outcome {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return Exhausted
	case ctx.Err() != nil:
		return Cancelled
	default:
		return Transient
	}
}

// statusCode extracts the gRPC code for logging; non-gRPC errors are Unknown.
func statusCode(err error) codes.Code {
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	return status.Code(errors.Cause(err))
}
