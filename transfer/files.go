package transfer

import (
	"errors"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	pkgerr "github.com/pkg/errors"

	"github.com/threatexpert/goqtty/qproto"
)

const (
	GetPrefix      = "get "
	ChunkGetPrefix = "get $chk."

	// CompressedSuffix is appended to files stored by a compressed get.
	CompressedSuffix = ".zst"
)

type GetOptions struct {
	// Command prefixes the remote path, GetPrefix when empty.
	Command string
	// Compress stores the object zstd compressed under local+".zst".
	Compress bool
	// Strict also discards the local file on a size mismatch.
	Strict bool
}

// LocalGet downloads remote into the file local. The file is removed when
// the server refuses the request. On a size mismatch the received bytes are
// kept unless opt.Strict is set.
func (e *Engine) LocalGet(remote, local string, opt GetOptions) error {
	prefix := opt.Command
	if prefix == "" {
		prefix = GetPrefix
	}
	if opt.Compress && !strings.HasSuffix(local, CompressedSuffix) {
		local += CompressedSuffix
	}

	f, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return &qproto.LocalError{Path: local, Err: err}
	}

	var (
		sink io.Writer = f
		enc  *zstd.Encoder
	)
	if opt.Compress {
		enc, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			os.Remove(local)
			return &qproto.LocalError{Path: local, Err: pkgerr.Wrap(err, "zstd")}
		}
		sink = enc
	}

	_, gerr := e.get(prefix+remote, sink, remote)

	var cerr error
	if enc != nil {
		cerr = enc.Close()
	}
	if err := f.Close(); cerr == nil {
		cerr = err
	}

	var le *qproto.LocalError
	if errors.As(gerr, &le) {
		le.Path = local
	}
	if gerr == nil && cerr != nil {
		gerr = &qproto.LocalError{Path: local, Err: cerr}
	}
	if gerr != nil && discardOnError(gerr, opt.Strict) {
		os.Remove(local)
	}
	return gerr
}

func discardOnError(err error, strict bool) bool {
	var ie *qproto.IntegrityError
	if errors.As(err, &ie) {
		return strict
	}
	return true
}

// LocalPut uploads the file local to remote using verb, put or putf.
func (e *Engine) LocalPut(verb, remote, local string) error {
	f, err := os.Open(local)
	if err != nil {
		return &qproto.LocalError{Path: local, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return &qproto.LocalError{Path: local, Err: err}
	}
	if st.IsDir() {
		return &qproto.LocalError{Path: local, Err: errors.New("is a directory")}
	}
	if st.Size() > math.MaxUint32 {
		return &qproto.LocalError{Path: local, Err: errors.New("file too large for a 32 bit size field")}
	}
	return e.put(verb+" "+remote, uint32(st.Size()), f, local)
}

// Cat copies a remote object to out.
func (e *Engine) Cat(remote string, out io.Writer) error {
	_, err := e.GetObject(GetPrefix+remote, out)
	return err
}
