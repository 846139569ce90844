package transfer

import (
	"os"
	"strings"

	"github.com/threatexpert/goqtty/qproto"
	"github.com/threatexpert/goqtty/wildmatch"
)

// Spec is a parsed get or put command line.
type Spec struct {
	Verb    string // get or put
	Remote  string
	Local   string
	Recurse bool
	Force   bool // put only, sends putf
	// Compress stores downloads zstd compressed, get only.
	Compress bool
	// Pattern selects the files of a batch transfer. Empty means a single
	// object transfer of the literal path.
	Pattern string
}

// RemoteVerb is the command word sent to the server for a put.
func (s *Spec) RemoteVerb() string {
	if s.Verb == "put" && s.Force {
		return "putf"
	}
	return s.Verb
}

func (s *Spec) Batch() bool {
	return s.Pattern != ""
}

// Tokens splits a command line on spaces and tabs.
func Tokens(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
}

const remoteSeps = `\/`

func localSeps() string {
	if os.PathSeparator == '/' {
		return "/"
	}
	return string(os.PathSeparator) + "/"
}

// ParseSpec parses "get [-FLAGS] REMOTE LOCAL" or "put [-FLAGS] REMOTE LOCAL".
// Flags: R recurses and selects every file, f uploads with putf and z
// stores downloads compressed. A wildcard in the last segment of the source
// path, the remote one for get and the local one for put, becomes the
// pattern and the rest of the path the directory to walk.
func ParseSpec(line string) (*Spec, error) {
	tok := Tokens(line)
	if len(tok) < 3 || (tok[0] != "get" && tok[0] != "put") {
		return nil, &qproto.UsageError{Line: line}
	}
	s := &Spec{Verb: tok[0]}
	args := tok[1:]
	if strings.HasPrefix(args[0], "-") {
		if len(args) < 3 {
			return nil, &qproto.UsageError{Line: line}
		}
		for _, f := range args[0][1:] {
			switch f {
			case 'R':
				s.Recurse = true
				s.Pattern = "*"
			case 'f':
				s.Force = s.Verb == "put"
			case 'z':
				s.Compress = s.Verb == "get"
			}
		}
		args = args[1:]
	}
	s.Remote, s.Local = args[0], args[1]

	if s.Verb == "get" {
		s.Remote = splitPattern(s.Remote, remoteSeps, &s.Pattern)
	} else {
		s.Local = splitPattern(s.Local, localSeps(), &s.Pattern)
	}
	s.Remote = trimSeps(s.Remote, remoteSeps)
	s.Local = trimSeps(s.Local, localSeps())
	return s, nil
}

func splitPattern(path, seps string, pattern *string) string {
	i := strings.LastIndexAny(path, seps)
	if i < 0 || !wildmatch.HasWild(path[i+1:]) {
		return path
	}
	*pattern = path[i+1:]
	if i == 0 {
		return path[:1]
	}
	return path[:i]
}

// trimSeps drops trailing separators, keeping a bare root.
func trimSeps(path, seps string) string {
	for len(path) > 1 && strings.ContainsRune(seps, rune(path[len(path)-1])) {
		path = path[:len(path)-1]
	}
	return path
}
