package misc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Console reads command lines from the user. On a terminal it offers line
// editing and history through term.Terminal, switching the tty to raw mode
// only while a line is being edited so command output keeps normal newline
// handling. Other inputs are read line by line.
type Console struct {
	in     io.Reader
	out    io.Writer
	fd     int
	tty    bool
	prompt string
	t      *term.Terminal
	intr   *interruptReader
	sc     *bufio.Scanner

	mu  sync.Mutex
	raw *term.State
}

// NewConsole wraps in and out. hist may be nil.
func NewConsole(in io.Reader, out io.Writer, prompt string, hist term.History) *Console {
	c := &Console{in: in, out: out, fd: -1, prompt: prompt}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
		c.tty = true
		c.attachTerminal(in, out, hist)
		return c
	}
	c.sc = bufio.NewScanner(in)
	c.sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return c
}

// ErrInterrupted is returned by ReadLine when the user typed ^C while the
// terminal was in raw mode.
var ErrInterrupted = errors.New("interrupted")

// interruptReader notes a ^C passing through to the line editor, which
// otherwise reports it as plain end of input.
type interruptReader struct {
	r   io.Reader
	hit atomic.Bool
}

func (ir *interruptReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if bytes.IndexByte(p[:n], keyCtrlC) >= 0 {
		ir.hit.Store(true)
	}
	return n, err
}

const keyCtrlC = 3

func (c *Console) attachTerminal(in io.Reader, out io.Writer, hist term.History) {
	c.intr = &interruptReader{r: in}
	c.t = term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{c.intr, out}, c.prompt)
	if hist != nil {
		c.t.History = hist
	}
}

func (c *Console) IsTerminal() bool {
	return c.tty
}

// ReadLine returns the next line without its terminator. io.EOF marks the
// end of input, including ^D on an empty terminal line. ^C on a terminal
// yields ErrInterrupted.
func (c *Console) ReadLine() (string, error) {
	if !c.tty {
		if !c.sc.Scan() {
			if err := c.sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return strings.TrimRight(c.sc.Text(), "\r"), nil
	}

	old, err := term.MakeRaw(c.fd)
	if err != nil {
		return "", fmt.Errorf("MakeRaw: %w", err)
	}
	c.mu.Lock()
	c.raw = old
	c.mu.Unlock()
	defer c.restore()
	return c.editLine()
}

func (c *Console) editLine() (string, error) {
	line, err := c.t.ReadLine()
	if err == io.EOF && c.intr.hit.Swap(false) {
		return "", ErrInterrupted
	}
	return line, err
}

func (c *Console) restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw != nil {
		term.Restore(c.fd, c.raw)
		c.raw = nil
	}
}

// Close puts the terminal back into its original mode if a ReadLine is
// still pending.
func (c *Console) Close() error {
	if c.tty {
		c.restore()
	}
	return nil
}

// ReadPassword prompts on out and reads a line with echo disabled. Non
// terminal input is read as a plain line.
func (c *Console) ReadPassword(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	if !c.tty {
		return c.ReadLine()
	}
	b, err := term.ReadPassword(c.fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ErrorSink writes error text in red when color output is enabled.
type ErrorSink struct {
	w io.Writer
	c *color.Color
}

func NewErrorSink(w io.Writer) *ErrorSink {
	return &ErrorSink{w: w, c: color.New(color.FgRed)}
}

func (s *ErrorSink) Write(p []byte) (int, error) {
	if color.NoColor {
		return s.w.Write(p)
	}
	if _, err := s.c.Fprint(s.w, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
