// Package qproto implements the packet framing spoken by QConsole servers
// and the error kinds shared by everything layered on top of it.
//
// Every message on the stream is a 3 byte header followed by the payload:
//
//	+--------+-----------------+=================+
//	| status | length (LE u16) | payload ...     |
//	+--------+-----------------+=================+
//
// The client always sends status 0. An empty payload is a regular packet
// and is used throughout the protocol as a terminator.
package qproto

import (
	"encoding/binary"
	"io"
	"sync"
)

const (
	HeaderSize = 3
	MaxPayload = 0xffff
)

var bufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, HeaderSize+8*1024)
	},
}

func getBuffer(size int) []byte {
	b := bufPool.Get().([]byte)
	if cap(b) < size {
		//lint:ignore SA6002 argument is a slice, but overhead is negligible compared to complexity
		bufPool.Put(b)
		return make([]byte, size)
	}
	return b[:size]
}

func putBuffer(b []byte) {
	//lint:ignore SA6002 argument is a slice, but overhead is negligible compared to complexity
	bufPool.Put(b)
}

// EncodeHeader returns the header announcing a payload of n bytes.
func EncodeHeader(n int) [HeaderSize]byte {
	var h [HeaderSize]byte
	h[0] = 0
	binary.LittleEndian.PutUint16(h[1:], uint16(n))
	return h
}

// Channel frames payloads over a byte stream. It is not safe for concurrent
// use; the protocol allows a single outstanding request anyway.
type Channel struct {
	rw  io.ReadWriter
	hdr [HeaderSize]byte
}

func NewChannel(rw io.ReadWriter) *Channel {
	return &Channel{rw: rw}
}

// Send writes one packet carrying payload.
func (c *Channel) Send(payload []byte) error {
	return c.send(payload, "")
}

// SendString writes one packet carrying s.
func (c *Channel) SendString(s string) error {
	return c.send(nil, s)
}

// send frames b followed by s into a single pooled buffer.
func (c *Channel) send(b []byte, s string) error {
	n := len(b) + len(s)
	if n > MaxPayload {
		return &ProtocolError{Msg: "payload too large for one packet"}
	}
	buf := getBuffer(HeaderSize + n)
	defer putBuffer(buf)

	h := EncodeHeader(n)
	copy(buf, h[:])
	copy(buf[HeaderSize:], b)
	copy(buf[HeaderSize+len(b):], s)
	return c.writeFull(buf)
}

func (c *Channel) writeFull(data []byte) error {
	total := 0
	for total < len(data) {
		n, err := c.rw.Write(data[total:])
		if err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		if n <= 0 {
			return &TransportError{Op: "write", Err: io.ErrShortWrite}
		}
		total += n
	}
	return nil
}

// Recv reads one packet and returns its payload. A zero length packet
// yields an empty, non-nil slice.
func (c *Channel) Recv() ([]byte, error) {
	if _, err := io.ReadFull(c.rw, c.hdr[:]); err != nil {
		return nil, &TransportError{Op: "read header", Err: err}
	}
	size := int(binary.LittleEndian.Uint16(c.hdr[1:]))
	payload := make([]byte, size)
	if size == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(c.rw, payload); err != nil {
		return nil, &TransportError{Op: "read payload", Err: err}
	}
	return payload, nil
}
