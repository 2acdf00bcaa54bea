package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter fans out log lines to several sinks from a single goroutine
// so callers never block on a slow file or terminal.
type asyncWriter struct {
	queue   chan []byte
	flushes chan chan error
	done    chan struct{}
	once    sync.Once

	sinks []*bufio.Writer

	mu  sync.Mutex
	err error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue:   make(chan []byte, 256),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.flush()
				return
			}
			w.write(line)
		case ack := <-w.flushes:
			ack <- w.flush()
		}
	}
}

// Write copies p and enqueues it. A full queue blocks the caller.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- append([]byte(nil), p...)
	return nil
}

// Flush waits until every queued line reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.failure()
	}
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.failure()
}

func (w *asyncWriter) write(line []byte) {
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			w.fail(err)
			return
		}
		if err := sink.Flush(); err != nil {
			w.fail(err)
			return
		}
	}
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
