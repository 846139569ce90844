package netx

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const NameCacheFile = ".bt-namecache"

// BDAddr is a bluetooth device address in the byte order the kernel uses,
// least significant byte first.
type BDAddr [6]byte

// ParseBDAddr parses "AA:BB:CC:DD:EE:FF".
func ParseBDAddr(s string) (BDAddr, error) {
	var a BDAddr
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return a, fmt.Errorf("invalid bluetooth address %q", s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return a, fmt.Errorf("invalid bluetooth address %q", s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return a, fmt.Errorf("invalid bluetooth address %q", s)
		}
		a[5-i] = byte(v)
	}
	return a, nil
}

func (a BDAddr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[5], a[4], a[3], a[2], a[1], a[0])
}

func DefaultNameCache() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return NameCacheFile
	}
	return filepath.Join(home, NameCacheFile)
}

// ResolveBDAddr accepts either a literal address or a device name listed
// in the cache file, one "name<TAB>address" per line. Names compare
// without regard to case.
func ResolveBDAddr(s, cache string) (BDAddr, error) {
	if a, err := ParseBDAddr(s); err == nil {
		return a, nil
	}
	if cache == "" {
		cache = DefaultNameCache()
	}
	f, err := os.Open(cache)
	if err != nil {
		return BDAddr{}, fmt.Errorf("unable to resolve '%s': %w", s, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		i := strings.LastIndexByte(line, '\t')
		if i < 0 {
			continue
		}
		a, err := ParseBDAddr(line[i+1:])
		if err != nil {
			continue
		}
		if strings.EqualFold(line[:i], s) {
			return a, nil
		}
	}
	return BDAddr{}, fmt.Errorf("unable to resolve '%s'", s)
}
