package process

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// Diagnostics accumulates a process's error stream as complete lines. It is
// an io.Writer so it can be used as cmd.Stderr; exec copies into it from its
// own goroutine, so all methods are safe for concurrent use.
//
// Nothing reacts to individual lines: a failure message often spans several
// of them, and callers decide on the outcome only once the whole text is in.
type Diagnostics struct {
	mu      sync.Mutex
	lines   []string
	partial []byte
}

// Write appends p, splitting it into lines. A trailing fragment without a
// newline is kept until more data or Flush arrives.
func (d *Diagnostics) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.partial = append(d.partial, p...)
	for {
		i := bytes.IndexByte(d.partial, '\n')
		if i < 0 {
			break
		}
		d.lines = append(d.lines, strings.TrimRight(string(d.partial[:i]), "\r"))
		d.partial = d.partial[i+1:]
	}
	return len(p), nil
}

// Flush turns a pending fragment into a line.
func (d *Diagnostics) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.partial) > 0 {
		d.lines = append(d.lines, strings.TrimRight(string(d.partial), "\r"))
		d.partial = nil
	}
}

// Lines returns a copy of the complete lines captured so far.
func (d *Diagnostics) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

// Empty reports whether nothing has been captured, pending fragment included.
func (d *Diagnostics) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines) == 0 && len(d.partial) == 0
}

// String returns all captured lines, each terminated by a newline, followed
// by any pending fragment.
func (d *Diagnostics) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, l := range d.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.Write(d.partial)
	return b.String()
}

// LogWriter is an io.Writer that logs each complete line at debug level.
type LogWriter struct {
	Log  *slog.Logger
	Name string

	mu      sync.Mutex
	partial []byte
}

// Write logs every complete line in p.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		if w.Log != nil {
			w.Log.Debug("process output", "process", w.Name, "line", strings.TrimRight(string(w.partial[:i]), "\r"))
		}
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}
