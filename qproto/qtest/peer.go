// Package qtest provides a scripted QConsole server end for tests that need
// to hold a protocol conversation with the client code.
package qtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/threatexpert/goqtty/qproto"
)

// Timeout bounds every scripted conversation so a protocol mismatch fails
// the test instead of hanging it.
var Timeout = 10 * time.Second

// Peer is the server side of an in-memory stream.
type Peer struct {
	conn net.Conn
	ch   *qproto.Channel
	done chan error
}

// Start connects a client stream to a server running script in its own
// goroutine. The server end is closed once script returns.
func Start(t testing.TB, script func(p *Peer) error) (net.Conn, *Peer) {
	client, server := net.Pipe()
	server.SetDeadline(time.Now().Add(Timeout))
	client.SetDeadline(time.Now().Add(Timeout))

	p := &Peer{
		conn: server,
		ch:   qproto.NewChannel(server),
		done: make(chan error, 1),
	}
	go func() {
		err := script(p)
		server.Close()
		p.done <- err
	}()
	t.Cleanup(func() { client.Close() })
	return client, p
}

// Wait blocks until the script has finished and returns its error.
func (p *Peer) Wait() error {
	return <-p.done
}

func (p *Peer) Send(payload []byte) error {
	return p.ch.Send(payload)
}

func (p *Peer) SendString(s string) error {
	return p.ch.SendString(s)
}

// Empty sends a zero length packet.
func (p *Peer) Empty() error {
	return p.ch.Send(nil)
}

func (p *Peer) SendSize(n uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	return p.ch.Send(b[:])
}

// Raw writes bytes to the stream without framing them.
func (p *Peer) Raw(b []byte) error {
	_, err := p.conn.Write(b)
	return err
}

func (p *Peer) Recv() ([]byte, error) {
	return p.ch.Recv()
}

// Expect reads one packet and fails unless its payload equals want.
func (p *Peer) Expect(want string) error {
	got, err := p.ch.Recv()
	if err != nil {
		return fmt.Errorf("waiting for %q: %w", want, err)
	}
	if string(got) != want {
		return fmt.Errorf("got packet %q, want %q", got, want)
	}
	return nil
}

// Reject answers a request with an error text and the trailing empty packet.
func (p *Peer) Reject(msg string) error {
	if err := p.SendString(msg); err != nil {
		return err
	}
	return p.Empty()
}

// ServeGet answers an accepted get: empty status, size, data split in
// chunks of at most chunk bytes, terminator. declared is sent as the size.
func (p *Peer) ServeGet(data []byte, declared uint32, chunk int) error {
	if err := p.Empty(); err != nil {
		return err
	}
	if err := p.SendSize(declared); err != nil {
		return err
	}
	for len(data) > 0 {
		n := min(chunk, len(data))
		if err := p.Send(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return p.Empty()
}

// AcceptPut answers an accepted put: empty status, then collects the size
// packet and the data packets up to the terminator, then acknowledges.
// The chunk sizes seen are returned alongside the data.
func (p *Peer) AcceptPut() ([]byte, []int, error) {
	if err := p.Empty(); err != nil {
		return nil, nil, err
	}
	sz, err := p.Recv()
	if err != nil {
		return nil, nil, err
	}
	if len(sz) != 4 {
		return nil, nil, fmt.Errorf("size packet has %d bytes", len(sz))
	}
	declared := binary.LittleEndian.Uint32(sz)
	var (
		buf    bytes.Buffer
		chunks []int
	)
	for {
		b, err := p.Recv()
		if err != nil {
			return nil, nil, err
		}
		if len(b) == 0 {
			break
		}
		chunks = append(chunks, len(b))
		buf.Write(b)
	}
	if uint32(buf.Len()) != declared {
		return nil, nil, fmt.Errorf("received %d bytes, declared %d", buf.Len(), declared)
	}
	return buf.Bytes(), chunks, p.Empty()
}

// Listing answers a find request with one packet per entry.
func (p *Peer) Listing(entries ...string) error {
	for _, e := range entries {
		if err := p.SendString(e); err != nil {
			return err
		}
	}
	return p.Empty()
}
