package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOut(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, nil, &b}, 16)
	for _, line := range []string{"one\n", "two\n", "three\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, buf := range []*bytes.Buffer{&a, &b} {
		if got := buf.String(); got != "one\ntwo\nthree\n" {
			t.Fatalf("sink got %q", got)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}

func TestAsyncWriterReportsErrors(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingWriter{}}, 4)
	_ = w.Write([]byte(strings.Repeat("x", 8)))
	if err := w.Close(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("close err = %v", err)
	}
	if err := w.Write([]byte("more")); err == nil {
		t.Fatalf("expected sticky error")
	}
}
