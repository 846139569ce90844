package secure

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadSecret resolves a secret given on the command line. "@path" reads the
// first line of the file so the password stays out of the process list;
// anything else is returned unchanged.
func ReadSecret(value string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	path := value[1:]
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open secret file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read secret file %s: %w", path, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
