package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	pkgerr "github.com/pkg/errors"

	"github.com/threatexpert/goqtty/qproto"
)

// BatchResult counts the outcome of a batch transfer.
type BatchResult struct {
	Files  int
	Failed int
}

// Run executes a parsed get or put: a single object transfer when s
// has no pattern, a batch otherwise.
func (e *Engine) Run(s *Spec) error {
	var (
		res *BatchResult
		err error
	)
	switch {
	case s.Verb == "get" && !s.Batch():
		return e.LocalGet(s.Remote, s.Local, GetOptions{Compress: s.Compress})
	case s.Verb == "put" && !s.Batch():
		return e.LocalPut(s.RemoteVerb(), s.Remote, s.Local)
	case s.Verb == "get":
		res, err = e.Mget(s)
	default:
		res, err = e.Mput(s)
	}
	if err != nil {
		return err
	}
	e.log.Printf("%s: %d transferred, %d failed", s.Verb, res.Files, res.Failed)
	return nil
}

// report prints a soft failure unless its text already reached the sink.
func (e *Engine) report(err error) {
	if !qproto.Reported(err) {
		fmt.Fprintln(e.errSink, err)
	}
}

// Mget downloads every remote file under s.Remote matching s.Pattern into
// the tree rooted at s.Local. Per file failures are reported and skipped;
// a hard failure stops the batch and is returned.
func (e *Engine) Mget(s *Spec) (*BatchResult, error) {
	entries, err := e.RemoteList(s.Remote, s.Pattern, s.Recurse)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{}
	for _, entry := range entries {
		local, ok := LocalPathFor(entry, s.Remote, s.Local, os.PathSeparator)
		if !ok {
			e.log.Printf("skipping %s: outside %s", entry, s.Remote)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(local), 0775); err != nil {
			res.Failed++
			e.report(&qproto.LocalError{Path: filepath.Dir(local), Err: err})
			continue
		}
		fmt.Fprintf(e.out, "%s\n->\t%s\n", entry, local)

		err := e.LocalGet(entry, local, GetOptions{Compress: s.Compress})
		if qproto.IsFatal(err) {
			return res, err
		}
		if err != nil {
			res.Failed++
			e.report(err)
			continue
		}
		res.Files++
		fmt.Fprintln(e.out, "OK")
	}
	return res, nil
}

// Mput uploads every local file under s.Local matching s.Pattern to the
// tree rooted at s.Remote.
func (e *Engine) Mput(s *Spec) (*BatchResult, error) {
	files, err := LocalList(s.Local, s.Pattern, s.Recurse, e.fold)
	if err != nil {
		return nil, &qproto.LocalError{Path: s.Local, Err: pkgerr.WithMessage(err, "Invalid path")}
	}
	verb := s.RemoteVerb()
	res := &BatchResult{}
	for _, file := range files {
		remote := RemotePathFor(file, s.Local, s.Remote)
		fmt.Fprintf(e.out, "%s\n->\t%s\n", file, remote)

		err := e.LocalPut(verb, remote, file)
		if qproto.IsFatal(err) {
			return res, err
		}
		if err != nil {
			res.Failed++
			e.report(err)
			continue
		}
		res.Files++
		fmt.Fprintln(e.out, "OK")
	}
	return res, nil
}
