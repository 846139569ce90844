// Package transfer runs file transfers and generic commands against a
// QConsole server over a qproto.Channel.
//
// Every operation is a strict request/reply exchange: one command packet,
// then the replies for that command, before anything else is sent.
package transfer

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/threatexpert/goqtty/misc"
	"github.com/threatexpert/goqtty/qproto"
)

// ChunkSize is the largest data packet sent by a put.
const ChunkSize = 8192

type EngineConfig struct {
	// Out receives batch listings and per file results.
	Out io.Writer
	// ErrSink receives error text sent by the server and local failures.
	ErrSink io.Writer
	Logger  *log.Logger
	// Progress, when set, receives per file progress lines.
	Progress io.Writer
	// FoldCase makes local file matching case-insensitive.
	FoldCase bool
}

type Engine struct {
	ch       *qproto.Channel
	out      io.Writer
	errSink  io.Writer
	log      *log.Logger
	progress io.Writer
	fold     bool
}

func NewEngine(ch *qproto.Channel, cfg EngineConfig) *Engine {
	e := &Engine{
		ch:       ch,
		out:      cfg.Out,
		errSink:  cfg.ErrSink,
		log:      cfg.Logger,
		progress: cfg.Progress,
		fold:     cfg.FoldCase,
	}
	if e.out == nil {
		e.out = io.Discard
	}
	if e.errSink == nil {
		e.errSink = io.Discard
	}
	if e.log == nil {
		e.log = log.New(io.Discard, "", 0)
	}
	return e
}

// readStatus reads a status packet. A non-empty one carries an error text,
// which is forwarded to the error sink, and is followed by an empty packet
// that is consumed here.
func (e *Engine) readStatus() error {
	msg, err := e.ch.Recv()
	if err != nil {
		return err
	}
	if len(msg) == 0 {
		return nil
	}
	e.errSink.Write(msg)
	if _, err := e.ch.Recv(); err != nil {
		return err
	}
	return &qproto.RemoteError{Msg: strings.TrimRight(string(msg), "\r\n")}
}

// GetObject sends cmd and copies the object the server streams back into
// sink. The count of bytes received is returned even on failure.
func (e *Engine) GetObject(cmd string, sink io.Writer) (int64, error) {
	return e.get(cmd, sink, "")
}

func (e *Engine) get(cmd string, sink io.Writer, label string) (int64, error) {
	if err := e.ch.SendString(cmd); err != nil {
		return 0, err
	}
	if err := e.readStatus(); err != nil {
		return 0, err
	}
	sz, err := e.ch.Recv()
	if err != nil {
		return 0, err
	}
	if len(sz) != 4 {
		return 0, &qproto.ProtocolError{Msg: fmt.Sprintf("size field is %d bytes, want 4", len(sz))}
	}
	declared := binary.LittleEndian.Uint32(sz)

	var meter *misc.Meter
	if e.progress != nil && label != "" {
		meter = misc.NewMeter(e.progress, label, int64(declared))
	}

	var (
		received uint32
		sinkErr  error
	)
	for {
		data, err := e.ch.Recv()
		if err != nil {
			return int64(received), err
		}
		if len(data) == 0 {
			break
		}
		received += uint32(len(data))
		if meter != nil {
			meter.Write(data)
		}
		// after a local write failure the rest is drained so the
		// stream stays in step with the server
		if sinkErr == nil {
			if _, err := sink.Write(data); err != nil {
				sinkErr = err
			}
		}
	}
	if meter != nil {
		meter.Done()
	}
	if sinkErr != nil {
		return int64(received), &qproto.LocalError{Path: "output", Err: sinkErr}
	}
	if received != declared {
		ie := &qproto.IntegrityError{Declared: declared, Received: received}
		fmt.Fprintln(e.errSink, ie.Error())
		return int64(received), ie
	}
	e.log.Printf("%s: %d bytes", cmd, received)
	return int64(received), nil
}

// PutObject sends cmd and uploads size bytes read from src. Once the size
// has been announced the server expects exactly that many bytes, so a
// source that fails or ends early leaves the stream unusable and is
// reported as a transport failure.
func (e *Engine) PutObject(cmd string, size uint32, src io.Reader) error {
	return e.put(cmd, size, src, "")
}

func (e *Engine) put(cmd string, size uint32, src io.Reader, label string) error {
	if err := e.ch.SendString(cmd); err != nil {
		return err
	}
	if err := e.readStatus(); err != nil {
		return err
	}
	var sz [4]byte
	binary.LittleEndian.PutUint32(sz[:], size)
	if err := e.ch.Send(sz[:]); err != nil {
		return err
	}

	var meter *misc.Meter
	if e.progress != nil && label != "" {
		meter = misc.NewMeter(e.progress, label, int64(size))
	}

	buf := make([]byte, ChunkSize)
	for sent := uint32(0); sent < size; {
		n := min(uint32(ChunkSize), size-sent)
		if _, err := io.ReadFull(src, buf[:n]); err != nil {
			return &qproto.TransportError{
				Op:  "read source",
				Err: &qproto.LocalError{Path: label, Err: err},
			}
		}
		if err := e.ch.Send(buf[:n]); err != nil {
			return err
		}
		if meter != nil {
			meter.Write(buf[:n])
		}
		sent += n
	}
	if meter != nil {
		meter.Done()
	}
	if err := e.ch.Send(nil); err != nil {
		return err
	}
	if err := e.readStatus(); err != nil {
		return err
	}
	e.log.Printf("%s: %d bytes", cmd, size)
	return nil
}

// Bounce forwards line unchanged and copies every reply packet to out
// until the empty terminator.
func (e *Engine) Bounce(line string, out io.Writer) error {
	if err := e.ch.SendString(line); err != nil {
		return err
	}
	for {
		data, err := e.ch.Recv()
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return nil
		}
		out.Write(data)
	}
}
