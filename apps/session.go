package apps

import (
	"io"
	"sync"
	"time"

	"github.com/threatexpert/goqtty/misc"
	"github.com/threatexpert/goqtty/netx"
	"github.com/threatexpert/goqtty/qproto"
	"github.com/threatexpert/goqtty/transfer"
)

// InterruptGrace bounds the farewell exchange sent when the user interrupts
// the client.
var InterruptGrace = 2 * time.Second

// Session owns the stream to one server for the lifetime of a run.
type Session struct {
	raw    io.ReadWriteCloser
	stream *misc.StatStream
	ch     *qproto.Channel

	closeOnce sync.Once
	closeErr  error
}

func NewSession(s io.ReadWriteCloser) *Session {
	stream := misc.NewStatStream(s)
	return &Session{
		raw:    s,
		stream: stream,
		ch:     qproto.NewChannel(stream),
	}
}

func (s *Session) Channel() *qproto.Channel {
	return s.ch
}

// Traffic returns the byte counters of the stream.
func (s *Session) Traffic() (rx, tx *misc.ProgressStats) {
	return s.stream.Rx, s.stream.Tx
}

// ReadBanner reads the greeting the server sends on connect.
func (s *Session) ReadBanner() (string, error) {
	b, err := s.ch.Recv()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Alive reports false once the peer is known to have hung up.
func (s *Session) Alive() bool {
	return !netx.PeerGone(s.raw)
}

// Interrupt tells the server the client is leaving, waiting at most
// InterruptGrace for the reply, then closes the stream.
func (s *Session) Interrupt(out io.Writer) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		transfer.NewEngine(s.ch, transfer.EngineConfig{}).Bounce("exit", out)
	}()
	select {
	case <-done:
	case <-time.After(InterruptGrace):
	}
	s.Close()
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.raw.Close()
	})
	return s.closeErr
}
