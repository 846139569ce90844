package apps

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/threatexpert/goqtty/misc"
	"github.com/threatexpert/goqtty/netx"
	"github.com/threatexpert/goqtty/qproto"
	"github.com/threatexpert/goqtty/secure"
	"github.com/threatexpert/goqtty/transfer"
)

const (
	VERSION = "v1.1.0"
	Prompt  = "$ "

	ExitOK      = 0
	ExitConnect = 1
	ExitLogin   = 2
)

// LivenessInterval is how often the stream is checked for a hung up peer
// while waiting for user input.
var LivenessInterval = time.Second

type AppQttyConfig struct {
	LogWriter io.Writer
	Logger    *log.Logger

	Dial netx.DialConfig
	// Connect opens the stream, netx.Dial when nil.
	Connect func(ctx context.Context, cfg *netx.DialConfig) (io.ReadWriteCloser, error)

	User        string
	Pass        string
	Progress    bool
	Verbose     bool
	HistoryFile string
	NoHistory   bool
	FoldCase    bool
	NoColor     bool
}

// AppQttyConfigByArgs parses args, which must not include the program name.
func AppQttyConfigByArgs(argv0 string, logWriter io.Writer, args []string) (*AppQttyConfig, error) {
	config := &AppQttyConfig{}

	fs := flag.NewFlagSet("AppQttyConfig", flag.ContinueOnError)
	fs.SetOutput(logWriter)

	fs.StringVar(&config.Dial.Address, "qc-addr", "", "server address: host[:port], socket path, serial device or bluetooth address/name")
	fs.IntVar(&config.Dial.Channel, "qc-channel", 0, "rfcomm channel, or port for tcp/kcp when -qc-addr has none")
	fs.StringVar(&config.Dial.Network, "net", defaultNetwork(), "tcp | unix | kcp | serial | rfcomm")
	fs.IntVar(&config.Dial.BaudRate, "baud", netx.DefaultBaudRate, "serial baud rate")
	fs.IntVar(&config.Dial.KeepAlive, "keepalive", 0, "none 0 will enable tcp keepalive with this many seconds")
	fs.DurationVar(&config.Dial.Timeout, "timeout", 30*time.Second, "connect timeout")
	fs.StringVar(&config.Dial.NameCache, "namecache", netx.DefaultNameCache(), "bluetooth name cache file")
	fs.StringVar(&config.User, "user", "", "login user")
	fs.StringVar(&config.Pass, "pass", "", "login password (or @file); prompted for when empty")
	fs.BoolVar(&config.Progress, "progress", false, "show transfer progress")
	fs.BoolVar(&config.Progress, "P", false, "alias for -progress")
	fs.BoolVar(&config.Verbose, "v", false, "verbose log")
	fs.StringVar(&config.HistoryFile, "history", misc.DefaultHistoryPath(), "command history file")
	fs.BoolVar(&config.NoHistory, "nohistory", false, "do not load or save command history")
	fs.BoolVar(&config.FoldCase, "nocase", runtime.GOOS == "windows", "match local file names without regard to case")
	fs.BoolVar(&config.NoColor, "nocolor", false, "disable colored error output")
	fs.IntVar(&netx.KcpWindowSize, "kcp-window-size", netx.KcpWindowSize, "")

	fs.Usage = func() {
		usage_full(argv0, fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		usage_less(argv0, fs.Output())
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if config.Dial.Address == "" || config.User == "" {
		usage_less(argv0, fs.Output())
		return nil, errors.New("-qc-addr and -user are required")
	}
	if config.Dial.Network == "rfcomm" && config.Dial.Channel <= 0 {
		usage_less(argv0, fs.Output())
		return nil, errors.New("-qc-channel is required for rfcomm")
	}

	config.LogWriter = misc.NewSwitchableWriter(logWriter, config.Verbose)
	config.Logger = misc.NewLog(config.LogWriter, "[qtty] ", log.LstdFlags|log.Lmsgprefix)
	return config, nil
}

func defaultNetwork() string {
	if runtime.GOOS == "linux" {
		return "rfcomm"
	}
	return "tcp"
}

func usage_full(argv0 string, fs *flag.FlagSet) {
	usage_less(argv0, fs.Output())
	fs.PrintDefaults()
	w := fs.Output()
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  %-28s %s\n", "get [-Rz] REMOTE LOCAL", "download; wildcards in REMOTE or -R select many files")
	fmt.Fprintf(w, "  %-28s %s\n", "put [-Rf] REMOTE LOCAL", "upload; wildcards in LOCAL or -R select many files, -f overwrites")
	fmt.Fprintf(w, "  %-28s %s\n", "cat REMOTE", "print a remote file")
	fmt.Fprintf(w, "  %-28s %s\n", "getchk REMOTE LOCAL", "download through the server's chunked reader")
	fmt.Fprintf(w, "  %-28s %s\n", "exit | quit | reboot | shutdown", "send to the server and leave")
	fmt.Fprintln(w, "  anything else is sent to the server as is")
}

func usage_less(argv0 string, w io.Writer) {
	fmt.Fprintln(w, "qtty "+VERSION+" - terminal console for QConsole servers")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "    %s -qc-addr ADDR [-qc-channel CHAN] [-net rfcomm|tcp|unix|kcp|serial]\n", argv0)
	fmt.Fprintln(w, "         -user USER [-pass PASS|@file] [-P] [-v]")
	fmt.Fprintln(w, "         [-h] for full help")
}

// Stdio groups the terminal streams used by a run.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

func App_Qtty_main(args []string) int {
	config, err := AppQttyConfigByArgs("qtty", os.Stderr, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		fmt.Fprintf(os.Stderr, "Error parsing qtty args: %v\n", err)
		return ExitConnect
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return App_Qtty_main_withconfig(ctx, Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}, config)
}

// App_Qtty_main_withconfig connects, logs in and serves commands until the
// input ends, a terminating command runs, the session fails or ctx is
// cancelled. It returns the process exit status.
func App_Qtty_main_withconfig(ctx context.Context, stdio Stdio, config *AppQttyConfig) int {
	if config.NoColor {
		color.NoColor = true
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	errSink := misc.NewErrorSink(stdio.Err)

	var hist *misc.FileHistory
	if !config.NoHistory {
		h, err := misc.OpenHistory(config.HistoryFile, misc.DefaultHistory)
		if err != nil {
			logger.Printf("history %s: %v", config.HistoryFile, err)
		} else {
			hist = h
		}
	}
	if hist == nil {
		hist, _ = misc.OpenHistory("", misc.DefaultHistory)
	}
	con := misc.NewConsole(stdio.In, stdio.Err, Prompt, hist)
	defer con.Close()

	pass := config.Pass
	if pass == "" {
		p, err := con.ReadPassword("Password: ")
		if err != nil {
			fmt.Fprintf(errSink, "Reading password: %v\n", err)
			return ExitConnect
		}
		pass = p
	} else {
		p, err := secure.ReadSecret(pass)
		if err != nil {
			fmt.Fprintf(errSink, "%v\n", err)
			return ExitConnect
		}
		pass = p
	}

	connect := config.Connect
	if connect == nil {
		connect = netx.Dial
	}
	fmt.Fprintf(stdio.Err, "Opening connection to %s (%d)\n", config.Dial.Address, config.Dial.Channel)
	stream, err := connect(ctx, &config.Dial)
	if err != nil {
		fmt.Fprintf(errSink, "Connect %s: %v\n", config.Dial.Address, err)
		return ExitConnect
	}
	sess := NewSession(stream)
	defer sess.Close()

	banner, err := sess.ReadBanner()
	if err != nil {
		fmt.Fprintf(errSink, "Reading banner: %v\n", err)
		return ExitConnect
	}
	fmt.Fprint(stdio.Err, banner)
	if err := secure.Login(sess.Channel(), banner, config.User, pass, errSink); err != nil {
		var ae *qproto.AuthError
		if !errors.As(err, &ae) {
			fmt.Fprintf(errSink, "Login: %v\n", err)
		}
		return ExitLogin
	}
	logger.Printf("logged in as %s", config.User)

	ecfg := transfer.EngineConfig{
		Out:      stdio.Err,
		ErrSink:  errSink,
		Logger:   logger,
		FoldCase: config.FoldCase,
	}
	if config.Progress {
		ecfg.Progress = misc.NewSwitchableWriter(stdio.Err, true)
	}
	eng := transfer.NewEngine(sess.Channel(), ecfg)
	disp := NewDispatcher(eng, stdio.Err, stdio.Out, errSink)

	code := runLoop(ctx, stdio, con, hist, sess, disp, errSink)

	if !config.NoHistory {
		if err := hist.Save(); err != nil {
			logger.Printf("saving history: %v", err)
		}
	}
	rx, tx := sess.Traffic()
	logger.Printf("session closed, received %s, sent %s",
		misc.FormatBytes(rx.Total()), misc.FormatBytes(tx.Total()))
	return code
}

type readResult struct {
	line string
	err  error
}

func runLoop(ctx context.Context, stdio Stdio, con *misc.Console, hist *misc.FileHistory,
	sess *Session, disp *Dispatcher, errSink io.Writer) int {

	next := make(chan struct{})
	lines := make(chan readResult)
	done := make(chan struct{})
	defer close(done)

	// ReadLine blocks, so it runs on its own goroutine and only when asked
	// for a line; the stream is never touched from there.
	go func() {
		for {
			select {
			case <-next:
			case <-done:
				return
			}
			line, err := con.ReadLine()
			select {
			case lines <- readResult{line, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case next <- struct{}{}:
		case <-ctx.Done():
			sess.Interrupt(stdio.Err)
			return ExitOK
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				sess.Interrupt(stdio.Err)
				return ExitOK
			case <-ticker.C:
				if !sess.Alive() {
					fmt.Fprintf(stdio.Err, "\nRemote server shut down\n")
					return ExitOK
				}
			case r := <-lines:
				if errors.Is(r.err, misc.ErrInterrupted) {
					sess.Interrupt(stdio.Err)
					return ExitOK
				}
				if r.err != nil {
					if r.err != io.EOF {
						fmt.Fprintf(errSink, "Reading input: %v\n", r.err)
					}
					return ExitOK
				}
				line := strings.Trim(r.line, " \t\r\n")
				if line == "" {
					break wait
				}
				hist.Add(line)

				quit, err := disp.Handle(line)
				if quit {
					return ExitOK
				}
				if qproto.IsFatal(err) {
					fmt.Fprintf(errSink, "%v\n", err)
					return ExitConnect
				}
				break wait
			}
		}
	}
}
