package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadLegacyIPFSPath returns the IPFS_PATH value from a KEY=VALUE file
// with # comments, as written for earlier build scripts. It returns an
// error wrapping fs.ErrNotExist if the file is missing, and "" if the file
// has no IPFS_PATH line.
func ReadLegacyIPFSPath(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("legacy ipfs config: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if v, ok := strings.CutPrefix(line, "IPFS_PATH="); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("legacy ipfs config %s: %w", path, err)
	}
	return "", nil
}
