package misc

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ProgressStats counts bytes moved through a stream. Update may be called
// from any goroutine; Stats is meant for a single reporter.
type ProgressStats struct {
	totalBytes int64
	lastBytes  int64
	startTime  time.Time
	lastTime   time.Time
	lastSpeed  float64
}

type StatResult struct {
	TotalBytes int64
	SpeedBps   float64
}

func NewProgressStats() *ProgressStats {
	now := time.Now()
	return &ProgressStats{startTime: now, lastTime: now}
}

func (p *ProgressStats) Update(n int64) {
	atomic.AddInt64(&p.totalBytes, n)
}

func (p *ProgressStats) Total() int64 {
	return atomic.LoadInt64(&p.totalBytes)
}

// Stats reports the rate since the previous call, or since the start when
// final is set.
func (p *ProgressStats) Stats(now time.Time, final bool) StatResult {
	cur := atomic.LoadInt64(&p.totalBytes)

	since, moved := now.Sub(p.lastTime).Seconds(), cur-p.lastBytes
	if final {
		since, moved = now.Sub(p.startTime).Seconds(), cur
	}
	speed := p.lastSpeed
	if since > 0 {
		speed = float64(moved) / since
		p.lastSpeed = speed
	}
	p.lastTime = now
	p.lastBytes = cur
	return StatResult{TotalBytes: cur, SpeedBps: speed}
}

func (p *ProgressStats) StartTime() time.Time {
	return p.startTime
}

// StatStream counts the traffic of a session stream in both directions.
type StatStream struct {
	io.ReadWriteCloser
	Rx *ProgressStats
	Tx *ProgressStats
}

func NewStatStream(s io.ReadWriteCloser) *StatStream {
	return &StatStream{
		ReadWriteCloser: s,
		Rx:              NewProgressStats(),
		Tx:              NewProgressStats(),
	}
}

func (s *StatStream) Read(b []byte) (int, error) {
	n, err := s.ReadWriteCloser.Read(b)
	if n > 0 {
		s.Rx.Update(int64(n))
	}
	return n, err
}

func (s *StatStream) Write(b []byte) (int, error) {
	n, err := s.ReadWriteCloser.Write(b)
	if n > 0 {
		s.Tx.Update(int64(n))
	}
	return n, err
}

func FormatBytes(bytes int64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB"}
	value := float64(bytes)
	for _, unit := range units {
		if value < 1024.0 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.1f YiB", value)
}

// ProgressInterval is how often a Meter redraws its line.
var ProgressInterval = 500 * time.Millisecond

// Meter tracks one file transfer and draws a '\r' terminated status line
// on out, at most once per ProgressInterval.
type Meter struct {
	mu    sync.Mutex
	out   io.Writer
	name  string
	size  int64
	stats *ProgressStats
	drawn time.Time
}

// NewMeter starts a meter for a transfer of size bytes. A nil out gives a
// meter that only counts.
func NewMeter(out io.Writer, name string, size int64) *Meter {
	return &Meter{out: out, name: name, size: size, stats: NewProgressStats()}
}

func (m *Meter) Write(p []byte) (int, error) {
	m.stats.Update(int64(len(p)))
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out == nil {
		return len(p), nil
	}
	now := time.Now()
	if now.Sub(m.drawn) < ProgressInterval {
		return len(p), nil
	}
	m.drawn = now
	m.draw(m.stats.Stats(now, false))
	return len(p), nil
}

func (m *Meter) draw(st StatResult) {
	if m.size > 0 {
		pct := float64(st.TotalBytes) * 100 / float64(m.size)
		fmt.Fprintf(m.out, "%s: %s/%s (%.1f%%) %s/s\r", m.name,
			FormatBytes(st.TotalBytes), FormatBytes(m.size), pct, FormatBytes(int64(st.SpeedBps)))
		return
	}
	fmt.Fprintf(m.out, "%s: %s %s/s\r", m.name, FormatBytes(st.TotalBytes), FormatBytes(int64(st.SpeedBps)))
}

// Done returns the final figures and, when drawing, leaves a summary line.
func (m *Meter) Done() StatResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats.Stats(time.Now(), true)
	if m.out != nil {
		fmt.Fprintf(m.out, "%s: %s in %s (%s/s)\n", m.name, FormatBytes(st.TotalBytes),
			time.Since(m.stats.StartTime()).Round(time.Millisecond), FormatBytes(int64(st.SpeedBps)))
	}
	return st
}
