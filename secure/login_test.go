package secure

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threatexpert/goqtty/qproto"
	"github.com/threatexpert/goqtty/qproto/qtest"
)

func TestExtractNonce(t *testing.T) {
	tests := []struct {
		banner string
		nonce  string
		ok     bool
	}{
		{"Welcome <abc123>", "abc123", true},
		{"QConsole 1.2 <n1>\r\n", "n1", true},
		{"<>", "", true},
		{"a <x> b <y>", "x", true},
		{"a > b <nonce>", "nonce", true},
		{"no delimiters", "", false},
		{"open <only", "", false},
		{"close only>", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.banner, func(t *testing.T) {
			nonce, err := ExtractNonce(tt.banner)
			if !tt.ok {
				var pe *qproto.ProtocolError
				require.ErrorAs(t, err, &pe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.nonce, nonce)
		})
	}
}

func TestChallengeDigest(t *testing.T) {
	got := ChallengeDigest("abc123", "secret")
	want := fmt.Sprintf("%x", sha1.Sum([]byte("abc123,secret")))

	assert.Equal(t, want, got)
	assert.Len(t, got, 40)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}$`), got)
}

func TestLoginAccepted(t *testing.T) {
	conn, peer := qtest.Start(t, func(p *qtest.Peer) error {
		if err := p.Expect("alice"); err != nil {
			return err
		}
		if err := p.Expect(ChallengeDigest("n1", "pw")); err != nil {
			return err
		}
		return p.Empty()
	})

	var sink bytes.Buffer
	err := Login(qproto.NewChannel(conn), "Welcome <n1>", "alice", "pw", &sink)
	require.NoError(t, err)
	require.NoError(t, peer.Wait())
	assert.Zero(t, sink.Len())
}

func TestLoginRefused(t *testing.T) {
	conn, peer := qtest.Start(t, func(p *qtest.Peer) error {
		if _, err := p.Recv(); err != nil {
			return err
		}
		if _, err := p.Recv(); err != nil {
			return err
		}
		return p.SendString("Invalid user or password\n")
	})

	var sink bytes.Buffer
	err := Login(qproto.NewChannel(conn), "Welcome <n1>", "alice", "wrong", &sink)
	var ae *qproto.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Invalid user or password", ae.Msg)
	assert.Equal(t, "Invalid user or password\n", sink.String())
	require.NoError(t, peer.Wait())
}

func TestLoginBadBannerSendsNothing(t *testing.T) {
	conn, peer := qtest.Start(t, func(p *qtest.Peer) error {
		return nil
	})
	err := Login(qproto.NewChannel(conn), "Welcome", "alice", "pw", nil)
	var pe *qproto.ProtocolError
	require.ErrorAs(t, err, &pe)
	require.NoError(t, peer.Wait())
}

func TestLoginConnectionDropped(t *testing.T) {
	conn, peer := qtest.Start(t, func(p *qtest.Peer) error {
		_, err := p.Recv()
		return err
	})
	err := Login(qproto.NewChannel(conn), "<n>", "alice", "pw", nil)
	assert.True(t, qproto.IsFatal(err))
	var te *qproto.TransportError
	require.ErrorAs(t, err, &te)
	require.NoError(t, peer.Wait())
}

func TestReadSecret(t *testing.T) {
	v, err := ReadSecret("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	path := filepath.Join(t.TempDir(), "pass.txt")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\r\nignored\n"), 0600))
	v, err = ReadSecret("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	noNL := filepath.Join(t.TempDir(), "pass2.txt")
	require.NoError(t, os.WriteFile(noNL, []byte("abc"), 0600))
	v, err = ReadSecret("@" + noNL)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = ReadSecret("@" + filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
