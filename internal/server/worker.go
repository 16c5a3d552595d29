package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"dotchat/internal/proto"
	"dotchat/internal/reqid"
)

// Worker states. Only the worker goroutine writes its state field,
// except for the manager's Running (or Waiting) -> StopRequested
// transition.
const (
	stateWaiting int32 = iota
	stateRunning
	stateStopRequested
	stateStopped
	stateFinished
)

// worker owns one TLS session and loops read -> dispatch -> write until
// the peer closes, a stop is requested or a transport error occurs.
type worker struct {
	id     string
	conn   net.Conn
	logger *zap.SugaredLogger
	h      *handler

	state atomic.Int32
	done  chan struct{}
}

func newWorker(conn net.Conn, h *handler, logger *zap.SugaredLogger) *worker {
	id := reqid.New()
	w := &worker{
		id:     id,
		conn:   conn,
		logger: logger.With("conn", id),
		h:      h,
		done:   make(chan struct{}),
	}
	w.state.Store(stateWaiting)
	return w
}

func (w *worker) start() {
	go w.run()
}

// requestStop asks the worker to stop after the in-flight message. The
// worker observes the request between messages; a blocked read is not
// preempted. A worker that has not started yet stops before its first
// read.
func (w *worker) requestStop() {
	if !w.state.CompareAndSwap(stateRunning, stateStopRequested) {
		w.state.CompareAndSwap(stateWaiting, stateStopRequested)
	}
}

// stopSync requests a stop and waits for the worker goroutine to exit.
func (w *worker) stopSync() {
	w.requestStop()
	<-w.done
}

// terminated reports whether the worker reached a terminal state.
func (w *worker) terminated() bool {
	st := w.state.Load()
	return st == stateStopped || st == stateFinished
}

// finish closes the session and records the terminal state, honoring a
// pending stop request.
func (w *worker) finish() {
	w.conn.Close()
	if !w.state.CompareAndSwap(stateStopRequested, stateStopped) {
		w.state.Store(stateFinished)
	}
}

func (w *worker) run() {
	defer close(w.done)

	// keep a stop that arrived before the first read
	w.state.CompareAndSwap(stateWaiting, stateRunning)
	w.logger.Info("Connection worker started")

	ctx := reqid.NewContext(context.Background(), w.id)

	var pending []byte
	buf := make([]byte, 4096)

	for {
		// drain every complete message already buffered
		for {
			s := proto.NewBytestream(pending)
			msg, err := proto.Decode(s)
			if proto.IsWireKind(err, proto.Truncated) {
				break
			}
			if err != nil {
				w.logger.Errorf("Dropping connection: %v", err)
				w.finish()
				return
			}
			pending = append(pending[:0], s.Bytes()...)

			if !w.serve(ctx, msg) {
				return
			}
			if w.state.CompareAndSwap(stateStopRequested, stateStopped) {
				w.logger.Info("Stop observed, closing connection")
				w.conn.Close()
				return
			}
		}

		if w.state.CompareAndSwap(stateStopRequested, stateStopped) {
			w.logger.Info("Stop observed, closing connection")
			w.conn.Close()
			return
		}

		n, err := w.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				w.logger.Info("Peer closed the connection")
			} else {
				w.logger.Errorf("Transport error: %v", err)
			}
			w.finish()
			return
		}
		if n == 0 {
			// zero-byte read is treated as peer close
			w.logger.Info("Peer closed the connection")
			w.finish()
			return
		}
	}
}

// serve dispatches one message and writes the response. It reports
// false when the connection was torn down.
func (w *worker) serve(ctx context.Context, msg *proto.Message) bool {
	w.logger.Debugf("Handling command %q", msg.Cmd)

	resp, err := w.h.dispatch(ctx, msg)
	if err != nil {
		w.logger.Errorf("Handler failed, dropping connection: %v", err)
		w.finish()
		return false
	}

	out, err := resp.Encode()
	if err != nil {
		w.logger.Errorf("Encoding response failed, dropping connection: %v", err)
		w.finish()
		return false
	}
	if _, err := w.conn.Write(out); err != nil {
		w.logger.Errorf("Transport error: %v", err)
		w.finish()
		return false
	}
	return true
}
