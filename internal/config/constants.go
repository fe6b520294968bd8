package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// DefaultUserAgents is the built-in pool the fetcher picks from when
// USER_AGENTS_PATH is not set.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:131.0) Gecko/20100101 Firefox/131.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Mobile/15E148 Safari/604.1",
}

// LoadUserAgents reads a user-agent pool from path, one entry per line.
// Blank lines and lines starting with '#' are skipped. An empty path returns
// a copy of DefaultUserAgents.
func LoadUserAgents(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), DefaultUserAgents...), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user agents file: %w", err)
	}

	agents := parseUserAgents(content)
	if len(agents) == 0 {
		return nil, fmt.Errorf("user agents file %s contains no entries", path)
	}
	return agents, nil
}

func parseUserAgents(content []byte) []string {
	var agents []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		agents = append(agents, line)
	}
	return agents
}
