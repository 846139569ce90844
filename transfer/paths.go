package transfer

import (
	"path/filepath"
	"strings"
)

// indexFold is strings.Index with ASCII case folding.
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if equalFoldASCII(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// normalize rewrites every '/' and '\' in path to sep.
func normalize(path string, sep byte) string {
	b := []byte(path)
	for i, c := range b {
		if c == '/' || c == '\\' {
			b[i] = sep
		}
	}
	return string(b)
}

func isSep(c byte) bool {
	return c == '/' || c == '\\'
}

func joinSep(root, rest string, sep byte) string {
	if root == "" {
		return rest
	}
	if isSep(root[len(root)-1]) {
		return root + rest
	}
	return root + string(sep) + rest
}

// LocalPathFor maps a remote listing entry under remoteRoot to a path under
// localRoot using sep as the local separator. The root is located without
// regard to case, as remote servers use case-insensitive file systems.
// ok is false when the entry does not contain remoteRoot.
func LocalPathFor(entry, remoteRoot, localRoot string, sep byte) (string, bool) {
	i := indexFold(entry, remoteRoot)
	if i < 0 {
		return "", false
	}
	rest := entry[i+len(remoteRoot):]
	if rest != "" && isSep(rest[0]) {
		rest = rest[1:]
	}
	return normalize(joinSep(localRoot, rest, sep), sep), true
}

// RemotePathFor maps a local file found under localRoot to its remote path
// under remoteRoot, with '\' separators.
func RemotePathFor(file, localRoot, remoteRoot string) string {
	rest, err := filepath.Rel(localRoot, file)
	if err != nil || strings.HasPrefix(rest, "..") {
		rest = strings.TrimPrefix(file, localRoot)
	}
	if rest != "" && isSep(rest[0]) {
		rest = rest[1:]
	}
	return normalize(joinSep(remoteRoot, rest, '\\'), '\\')
}
