// Package logstream turns the output of a child process into structured log lines.
package logstream

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// maxLine bounds a buffered partial line; longer lines are emitted in pieces.
const maxLine = 64 * 1024

// Writer logs every complete line written to it as one record.
type Writer struct {
	mu     sync.Mutex
	logger *slog.Logger
	level  slog.Level
	msg    string
	attrs  []slog.Attr
	buf    bytes.Buffer
}

// NewWriter creates a Writer logging each line under msg with attrs and a
// "line" attribute carrying the text.
func NewWriter(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger, level: level, msg: msg, attrs: attrs}
}

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			if w.buf.Len() >= maxLine {
				w.emit(w.buf.Next(maxLine))
				continue
			}
			break
		}
		line := w.buf.Next(i + 1)
		w.emit(line[:i])
	}
	return len(p), nil
}

// Close flushes a trailing line without newline.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Bytes())
		w.buf.Reset()
	}
	return nil
}

func (w *Writer) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	attrs := append(append([]slog.Attr{}, w.attrs...), slog.String("line", string(line)))
	w.logger.LogAttrs(context.Background(), w.level, w.msg, attrs...)
}
