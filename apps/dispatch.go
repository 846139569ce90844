package apps

import (
	"fmt"
	"io"
	"strings"

	"github.com/threatexpert/goqtty/qproto"
	"github.com/threatexpert/goqtty/transfer"
)

// Dispatcher runs one command line against the server.
type Dispatcher struct {
	eng     *transfer.Engine
	console io.Writer
	stdout  io.Writer
	errSink io.Writer
}

// NewDispatcher returns a dispatcher writing generic command replies to
// console, cat output to stdout and failures to errSink.
func NewDispatcher(eng *transfer.Engine, console, stdout, errSink io.Writer) *Dispatcher {
	return &Dispatcher{eng: eng, console: console, stdout: stdout, errSink: errSink}
}

func isTerminating(verb string) bool {
	switch verb {
	case "exit", "quit", "reboot", "shutdown":
		return true
	}
	return false
}

// Handle executes line. quit is set when the client should end after it.
// Failures that leave the session usable have already been reported to
// the error sink when Handle returns; fatal ones are left to the caller.
func (d *Dispatcher) Handle(line string) (quit bool, err error) {
	line = strings.Trim(line, " \t\r\n")
	if line == "" {
		return false, nil
	}
	tok := transfer.Tokens(line)

	switch verb := tok[0]; {
	case isTerminating(verb):
		// servers may drop the stream on reboot or shutdown without a
		// terminator; the session is over either way
		quit = true
		if err = d.eng.Bounce(line, d.console); qproto.IsFatal(err) {
			err = nil
		}
	case verb == "get" || verb == "put":
		var spec *transfer.Spec
		if spec, err = transfer.ParseSpec(line); err == nil {
			err = d.eng.Run(spec)
		}
	case verb == "cat":
		if len(tok) < 2 {
			err = &qproto.UsageError{Line: line}
			break
		}
		err = d.eng.Cat(tok[1], d.stdout)
	case verb == "getchk":
		if len(tok) < 3 {
			err = &qproto.UsageError{Line: line}
			break
		}
		err = d.eng.LocalGet(tok[1], tok[2], transfer.GetOptions{
			Command: transfer.ChunkGetPrefix,
			Strict:  true,
		})
	default:
		err = d.eng.Bounce(line, d.console)
	}

	if err != nil && !qproto.IsFatal(err) && !qproto.Reported(err) {
		fmt.Fprintln(d.errSink, err)
	}
	return quit, err
}
