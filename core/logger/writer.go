package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter moves log output off the calling goroutine. Lines are batched
// into one buffer over all sinks and flushed whenever the queue drains.
type asyncWriter struct {
	queue   chan []byte
	flushCh chan chan error
	done    chan struct{}
	close   sync.Once

	buf *bufio.Writer

	mu  sync.Mutex
	err error
}

func newAsyncWriter(sinks []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	live := sinks[:0:0]
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	w := &asyncWriter{
		queue:   make(chan []byte, 256),
		flushCh: make(chan chan error),
		done:    make(chan struct{}),
		buf:     bufio.NewWriterSize(io.MultiWriter(live...), bufSize),
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
				w.fail(w.buf.Flush())
				return
			}
			w.fail(w.write(line))
		case ack := <-w.flushCh:
			ack <- w.buf.Flush()
		}
	}
}

// write buffers line and flushes once no more lines are waiting.
func (w *asyncWriter) write(line []byte) error {
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	if len(w.queue) == 0 {
		return w.buf.Flush()
	}
	return nil
}

// Write queues a copy of p. It blocks when the queue is full rather than drop lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- append([]byte(nil), p...)
	return nil
}

// Flush waits until everything written so far has reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushCh <- ack:
		return errors.Join(w.Err(), <-ack)
	case <-w.done:
		return w.Err()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.close.Do(func() { close(w.queue) })
	<-w.done
	return w.Err()
}

// Err returns the first write error seen by the writer.
func (w *asyncWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
