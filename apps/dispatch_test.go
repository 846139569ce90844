package apps

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatexpert/goqtty/qproto"
	"github.com/threatexpert/goqtty/qproto/qtest"
	"github.com/threatexpert/goqtty/transfer"
)

type testDispatcher struct {
	*Dispatcher
	peer    *qtest.Peer
	console *bytes.Buffer
	stdout  *bytes.Buffer
	errs    *bytes.Buffer
}

func newTestDispatcher(t *testing.T, script func(p *qtest.Peer) error) *testDispatcher {
	t.Helper()
	conn, peer := qtest.Start(t, script)
	td := &testDispatcher{
		peer:    peer,
		console: &bytes.Buffer{},
		stdout:  &bytes.Buffer{},
		errs:    &bytes.Buffer{},
	}
	eng := transfer.NewEngine(qproto.NewChannel(conn), transfer.EngineConfig{Out: td.console, ErrSink: td.errs})
	td.Dispatcher = NewDispatcher(eng, td.console, td.stdout, td.errs)
	return td
}

func TestHandleBounce(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error {
		if err := p.Expect("ps -ef"); err != nil {
			return err
		}
		return p.Listing("PID CMD\n", "1 init\n")
	})

	quit, err := d.Handle("  ps -ef \r\n")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "PID CMD\n1 init\n", d.console.String())
	require.NoError(t, d.peer.Wait())
}

func TestHandleEmptyLine(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error { return nil })
	quit, err := d.Handle(" \t\r\n")
	assert.NoError(t, err)
	assert.False(t, quit)
	require.NoError(t, d.peer.Wait())
}

func TestHandleTerminating(t *testing.T) {
	for _, verb := range []string{"exit", "quit", "reboot", "shutdown", "reboot now"} {
		d := newTestDispatcher(t, func(p *qtest.Peer) error {
			if err := p.Expect(verb); err != nil {
				return err
			}
			return p.Listing("bye\n")
		})
		quit, err := d.Handle(verb)
		require.NoError(t, err, verb)
		assert.True(t, quit, verb)
		assert.Equal(t, "bye\n", d.console.String())
		require.NoError(t, d.peer.Wait())
	}
}

func TestHandleTerminatingServerHangsUp(t *testing.T) {
	for _, verb := range []string{"reboot", "shutdown", "exit"} {
		d := newTestDispatcher(t, func(p *qtest.Peer) error {
			return p.Expect(verb)
		})
		quit, err := d.Handle(verb)
		require.NoError(t, err, verb)
		assert.True(t, quit, verb)
		assert.Empty(t, d.errs.String(), verb)
		require.NoError(t, d.peer.Wait())
	}
}

func TestHandleNotTerminating(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error {
		if err := p.Expect("exits"); err != nil {
			return err
		}
		return p.Empty()
	})
	quit, err := d.Handle("exits")
	require.NoError(t, err)
	assert.False(t, quit)
	require.NoError(t, d.peer.Wait())
}

func TestHandleUsage(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error { return nil })

	for _, line := range []string{"get", "put onlyremote", "cat", "getchk remote", "get -R a"} {
		d.errs.Reset()
		quit, err := d.Handle(line)
		var ue *qproto.UsageError
		require.ErrorAs(t, err, &ue, line)
		assert.False(t, quit)
		assert.Equal(t, "Invalid command: "+line+"\n", d.errs.String())
	}
	require.NoError(t, d.peer.Wait())
}

func TestHandleCat(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error {
		if err := p.Expect(`get C:\autoexec.bat`); err != nil {
			return err
		}
		return p.ServeGet([]byte("@echo off\n"), 10, 8192)
	})

	_, err := d.Handle(`cat C:\autoexec.bat`)
	require.NoError(t, err)
	assert.Equal(t, "@echo off\n", d.stdout.String())
	assert.Zero(t, d.console.Len())
	require.NoError(t, d.peer.Wait())
}

func TestHandleTabAfterVerb(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error {
		if err := p.Expect(`get C:\autoexec.bat`); err != nil {
			return err
		}
		return p.ServeGet([]byte("rem\n"), 4, 8192)
	})

	_, err := d.Handle("cat\tC:\\autoexec.bat")
	require.NoError(t, err)
	assert.Equal(t, "rem\n", d.stdout.String())
	require.NoError(t, d.peer.Wait())
}

func TestHandleGetchk(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	bad := filepath.Join(dir, "bad")
	d := newTestDispatcher(t, func(p *qtest.Peer) error {
		if err := p.Expect("get $chk.a.bin"); err != nil {
			return err
		}
		if err := p.ServeGet([]byte("abcd"), 4, 8192); err != nil {
			return err
		}
		if err := p.Expect("get $chk.b.bin"); err != nil {
			return err
		}
		return p.ServeGet([]byte("ab"), 4, 8192)
	})

	_, err := d.Handle("getchk a.bin " + good)
	require.NoError(t, err)
	b, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(b))

	quit, err := d.Handle("getchk b.bin " + bad)
	var ie *qproto.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.False(t, quit)
	assert.NoFileExists(t, bad)
	// already printed by the engine, not repeated
	assert.Equal(t, "Remote read error (data size mismatch: 2/4)\n", d.errs.String())
	require.NoError(t, d.peer.Wait())
}

func TestHandleLocalFailureReported(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error { return nil })

	missing := filepath.Join(t.TempDir(), "absent.txt")
	_, err := d.Handle(`put \x ` + missing)
	var le *qproto.LocalError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, d.errs.String(), missing)
	require.NoError(t, d.peer.Wait())
}

func TestHandleFatalNotPrinted(t *testing.T) {
	d := newTestDispatcher(t, func(p *qtest.Peer) error {
		_, err := p.Recv()
		return err
	})

	_, err := d.Handle("dir")
	assert.True(t, qproto.IsFatal(err))
	assert.Zero(t, d.errs.Len())
	require.NoError(t, d.peer.Wait())
}
