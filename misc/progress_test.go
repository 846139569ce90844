package misc

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0 B"},
		{1023, "1023.0 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestProgressStats(t *testing.T) {
	p := NewProgressStats()
	p.Update(100)
	p.Update(50)
	assert.EqualValues(t, 150, p.Total())

	st := p.Stats(p.StartTime().Add(time.Second), false)
	assert.EqualValues(t, 150, st.TotalBytes)
	assert.InDelta(t, 150.0, st.SpeedBps, 0.001)

	p.Update(50)
	st = p.Stats(p.StartTime().Add(2*time.Second), true)
	assert.EqualValues(t, 200, st.TotalBytes)
	assert.InDelta(t, 100.0, st.SpeedBps, 0.001)
}

func TestStatStream(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	s := NewStatStream(a)
	defer s.Close()

	go func() {
		buf := make([]byte, 5)
		io.ReadFull(b, buf)
		b.Write([]byte("pong!!"))
	}()

	_, err := s.Write([]byte("ping!"))
	require.NoError(t, err)
	buf := make([]byte, 6)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)

	assert.EqualValues(t, 5, s.Tx.Total())
	assert.EqualValues(t, 6, s.Rx.Total())
}

func TestMeter(t *testing.T) {
	saved := ProgressInterval
	ProgressInterval = 0
	defer func() { ProgressInterval = saved }()

	var out bytes.Buffer
	m := NewMeter(&out, "a.bin", 2048)
	m.Write(make([]byte, 1024))
	m.Write(make([]byte, 1024))
	st := m.Done()

	assert.EqualValues(t, 2048, st.TotalBytes)
	s := out.String()
	assert.Contains(t, s, "a.bin: 1.0 KiB/2.0 KiB (50.0%)")
	assert.True(t, strings.HasSuffix(s, "/s)\n"))
}

func TestMeterCountOnly(t *testing.T) {
	m := NewMeter(nil, "x", 0)
	n, err := m.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.EqualValues(t, 3, m.Done().TotalBytes)
}
