package qproto

import (
	"errors"
	"fmt"
)

// TransportError reports a failed read or write on the underlying stream.
// The session cannot continue after it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a peer that does not follow the wire format.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

// AuthError is returned when the server refuses the login.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	if e.Msg == "" {
		return "login refused"
	}
	return "login refused: " + e.Msg
}

// RemoteError carries the status text the server sent instead of an empty
// acknowledgement.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Msg
}

// IntegrityError reports a download whose data does not add up to the size
// announced by the server. The bytes received were still delivered.
type IntegrityError struct {
	Declared uint32
	Received uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("Remote read error (data size mismatch: %d/%d)", e.Received, e.Declared)
}

// LocalError reports a failure on the local side of a transfer.
type LocalError struct {
	Path string
	Err  error
}

func (e *LocalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LocalError) Unwrap() error { return e.Err }

// UsageError reports a command line missing required tokens.
type UsageError struct {
	Line string
}

func (e *UsageError) Error() string {
	return "Invalid command: " + e.Line
}

// Outcome classifies the result of one command.
type Outcome int

const (
	OK Outcome = iota
	Soft
	Hard
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Soft:
		return "soft failure"
	case Hard:
		return "hard failure"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Classify maps err onto an Outcome. Unknown errors are treated as hard,
// since nothing is known about the state of the stream after them.
func Classify(err error) Outcome {
	if err == nil {
		return OK
	}
	var (
		te *TransportError
		pe *ProtocolError
		ae *AuthError
	)
	if errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &ae) {
		return Hard
	}
	var (
		re *RemoteError
		ie *IntegrityError
		le *LocalError
		ue *UsageError
	)
	if errors.As(err, &re) || errors.As(err, &ie) || errors.As(err, &le) || errors.As(err, &ue) {
		return Soft
	}
	return Hard
}

// IsFatal reports whether the session must be torn down after err.
func IsFatal(err error) bool {
	return Classify(err) == Hard
}

// Reported reports whether the text of err already reached the error sink
// from inside the protocol layer.
func Reported(err error) bool {
	var (
		re *RemoteError
		ie *IntegrityError
	)
	return errors.As(err, &re) || errors.As(err, &ie)
}
