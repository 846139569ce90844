package secure

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"strings"

	"github.com/threatexpert/goqtty/qproto"
)

// ExtractNonce returns the text between the first '<' of the banner and
// the first '>' after it.
func ExtractNonce(banner string) (string, error) {
	start := strings.IndexByte(banner, '<')
	if start < 0 {
		return "", &qproto.ProtocolError{Msg: "banner carries no '<' nonce delimiter"}
	}
	rest := banner[start+1:]
	end := strings.IndexByte(rest, '>')
	if end < 0 {
		return "", &qproto.ProtocolError{Msg: "banner carries no '>' nonce delimiter"}
	}
	return rest[:end], nil
}

// ChallengeDigest is the login token: lowercase hex of SHA1("nonce,password").
func ChallengeDigest(nonce, password string) string {
	h := sha1.New()
	io.WriteString(h, nonce)
	io.WriteString(h, ",")
	io.WriteString(h, password)
	return hex.EncodeToString(h.Sum(nil))
}

// Login answers the server challenge found in banner. A refusal text sent
// by the server is copied to errSink and reported as *qproto.AuthError.
// There is no retry: the server expects a new connection for that.
func Login(ch *qproto.Channel, banner, user, password string, errSink io.Writer) error {
	nonce, err := ExtractNonce(banner)
	if err != nil {
		return err
	}
	if err := ch.SendString(user); err != nil {
		return err
	}
	if err := ch.SendString(ChallengeDigest(nonce, password)); err != nil {
		return err
	}
	reply, err := ch.Recv()
	if err != nil {
		return err
	}
	if len(reply) > 0 {
		if errSink != nil {
			errSink.Write(reply)
		}
		return &qproto.AuthError{Msg: strings.TrimSpace(string(reply))}
	}
	return nil
}
