package writer

import (
	"bytes"
	"io"
	"sync"

	"github.com/taskground/taskground/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output funnels all driver and subprocess output into one serialized sink.
// It embeds a SugaredLogger for structured driver messages, and exposes
// io.Writer adapters for raw subprocess streams, so that the interleaving of
// log lines and command output is at least line-coherent.
type Output struct {
	mu *sync.Mutex
	*zap.SugaredLogger

	out io.Writer
}

var _ io.Writer = (*Output)(nil)

// New creates an Output writing raw stream data to out, with the logger
// wired to the same sink.
func New(out io.Writer) *Output {
	ws := zapcore.Lock(zapcore.AddSync(out))
	logger := logging.NewLogger(ws)

	return &Output{
		mu:            new(sync.Mutex),
		SugaredLogger: logger.Sugar(),
		out:           out,
	}
}

// Discard returns an Output that swallows everything. Useful in tests and
// for silenced sessions.
func Discard() *Output {
	return &Output{
		mu:            new(sync.Mutex),
		SugaredLogger: zap.NewNop().Sugar(),
		out:           io.Discard,
	}
}

// Write implements io.Writer; writes are serialized against log statements.
func (ow *Output) Write(p []byte) (int, error) {
	ow.mu.Lock()
	defer ow.mu.Unlock()
	return ow.out.Write(p)
}

// With returns a new Output, replacing the SugaredLogger with the result
// from delegating to SugaredLogger.With. The serialization lock is shared,
// so derived outputs never interleave mid-write with their parent.
func (ow *Output) With(args ...interface{}) *Output {
	return &Output{
		mu:            ow.mu,
		SugaredLogger: ow.SugaredLogger.With(args...),
		out:           ow.out,
	}
}

// stdoutWriter pipes raw subprocess output through the serialized sink.
type stdoutWriter struct{ ow *Output }

var _ io.Writer = (*stdoutWriter)(nil)

func (sw *stdoutWriter) Write(p []byte) (n int, err error) {
	return sw.ow.Write(p)
}

// StdoutWriter returns an io.Writer suitable for wiring directly into a
// subprocess stdout/stderr.
func (ow *Output) StdoutWriter() io.Writer {
	return &stdoutWriter{ow}
}

// infoWriter turns all writes into Info log statements.
type infoWriter struct{ ow *Output }

var _ io.Writer = (*infoWriter)(nil)

func (iw *infoWriter) Write(p []byte) (n int, err error) {
	iw.ow.Info(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// InfoWriter returns an io.Writer that turns all writes into Info log
// statements in the underlying logger.
func (ow *Output) InfoWriter() io.Writer {
	return &infoWriter{ow}
}
