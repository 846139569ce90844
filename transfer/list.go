package transfer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/threatexpert/goqtty/wildmatch"
)

// RemoteList asks the server for the files under dir matching pattern,
// one entry per reply packet, in the order the server sent them.
func (e *Engine) RemoteList(dir, pattern string, recurse bool) ([]string, error) {
	flag := "-s1"
	if recurse {
		flag = "-s"
	}
	if err := e.ch.SendString("find " + flag + " " + dir + " " + pattern); err != nil {
		return nil, err
	}
	var entries []string
	for {
		data, err := e.ch.Recv()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			break
		}
		name, _, _ := strings.Cut(string(data), "\n")
		name = strings.TrimSuffix(name, "\r")
		if name != "" {
			entries = append(entries, name)
		}
	}
	e.log.Printf("find %s %s: %d entries", dir, pattern, len(entries))
	return entries, nil
}

// LocalList returns the regular files under root whose base name matches
// pattern, descending into subdirectories when recurse is set. An empty
// pattern matches everything. Symbolic links are followed for files only.
func LocalList(root, pattern string, recurse, fold bool) ([]string, error) {
	matchFn := wildmatch.Match
	if fold {
		matchFn = wildmatch.MatchFold
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recurse {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			if d.Type()&fs.ModeSymlink == 0 {
				return nil
			}
			st, err := os.Stat(path)
			if err != nil || !st.Mode().IsRegular() {
				return nil
			}
		}
		if pattern != "" && !matchFn(d.Name(), pattern) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
