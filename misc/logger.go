package misc

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// SwitchableWriter gates diagnostic output behind -v and keeps transient
// progress lines (ending in '\r', no '\n') from mangling regular log lines.
type SwitchableWriter struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool

	// progLen is the visible width of the progress line currently on
	// screen, zero when the cursor sits after a regular line.
	progLen     int
	midLine     bool
	lastLog     time.Time
	lastProgOut time.Time
}

func NewSwitchableWriter(w io.Writer, enabled bool) *SwitchableWriter {
	return &SwitchableWriter{w: w, enabled: enabled}
}

func (sw *SwitchableWriter) Enable(b bool) {
	sw.mu.Lock()
	sw.enabled = b
	sw.mu.Unlock()
}

func (sw *SwitchableWriter) Enabled() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.enabled
}

func visibleLen(p []byte) int {
	if i := bytes.IndexAny(p, "\r\n"); i >= 0 {
		return i
	}
	return len(p)
}

func isProgressLine(p []byte) bool {
	return len(p) > 0 && p[len(p)-1] == '\r' && bytes.IndexByte(p, '\n') < 0
}

// padTo inserts spaces before the trailing terminator of p so that it
// covers width columns.
func padTo(p []byte, width int) []byte {
	cur := visibleLen(p)
	if cur >= width {
		return p
	}
	end := len(p)
	if end > 0 && (p[end-1] == '\n' || p[end-1] == '\r') {
		end--
	}
	out := make([]byte, 0, len(p)+width-cur)
	out = append(out, p[:end]...)
	out = append(out, bytes.Repeat([]byte{' '}, width-cur)...)
	return append(out, p[end:]...)
}

func (sw *SwitchableWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.enabled {
		return len(p), nil
	}
	n := len(p)
	now := time.Now()

	if isProgressLine(p) {
		// while regular lines are flowing, progress only shows up now and then
		if now.Sub(sw.lastLog) < time.Second && now.Sub(sw.lastProgOut) < 10*time.Second {
			return n, nil
		}
		if sw.midLine {
			if _, err := sw.w.Write([]byte{'\n'}); err != nil {
				return 0, err
			}
			sw.midLine = false
		}
		width := visibleLen(p)
		out := padTo(p, sw.progLen)
		if _, err := sw.w.Write(out); err != nil {
			return 0, err
		}
		sw.progLen = width
		sw.lastProgOut = now
		return n, nil
	}

	out := p
	if sw.progLen > 0 {
		out = padTo(p, sw.progLen)
		sw.progLen = 0
	}
	if _, err := sw.w.Write(out); err != nil {
		return 0, err
	}
	sw.lastLog = now
	sw.midLine = len(p) > 0 && p[len(p)-1] != '\n'
	return n, nil
}

// ShortTimeWriter stamps each write with YYYYMMDD-HHMMSS, optionally with
// milliseconds.
type ShortTimeWriter struct {
	w         io.Writer
	withMilli bool
}

func NewShortTimeWriter(w io.Writer, withMilli bool) *ShortTimeWriter {
	return &ShortTimeWriter{w: w, withMilli: withMilli}
}

func (tw *ShortTimeWriter) Write(p []byte) (int, error) {
	if sw, ok := tw.w.(*SwitchableWriter); ok && !sw.Enabled() {
		return len(p), nil
	}
	layout := "20060102-150405"
	if tw.withMilli {
		layout = "20060102-150405.000"
	}
	if _, err := fmt.Fprintf(tw.w, "%s %s", time.Now().Format(layout), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

const timeFlags = log.Ldate | log.Ltime | log.Lmicroseconds

// NewLog returns a logger whose tag follows the short timestamp. The
// standard time flags are dropped in favour of ShortTimeWriter.
func NewLog(w io.Writer, tag string, flag int) *log.Logger {
	flag &^= timeFlags
	flag |= log.Lmsgprefix
	return log.New(NewShortTimeWriter(w, false), tag, flag)
}

func NewLogMilli(w io.Writer, tag string, flag int) *log.Logger {
	flag &^= timeFlags
	flag |= log.Lmsgprefix
	return log.New(NewShortTimeWriter(w, true), tag, flag)
}
