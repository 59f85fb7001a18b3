package gateway

import (
	"os"
	"strings"
)

// Secrets resolves credentials. The process environment wins over values
// read from the env file.
type Secrets map[string]string

// LoadSecrets reads an optional env file. An empty path yields a Secrets
// backed only by the process environment.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile == "" {
		return Secrets{}, nil
	}
	return ParseEnvFile(envFile)
}

func (s Secrets) Get(key string) string {
	if key == "" {
		return ""
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s[key]
}

// ParseEnvFile reads KEY=VALUE lines. Blank lines, comments and lines
// without '=' are skipped; an "export " prefix and matching quotes are
// stripped.
func ParseEnvFile(path string) (Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	secrets := Secrets{}
	for _, line := range strings.Split(string(data), "\n") {
		s := strings.TrimSpace(line)
		if s == "" || s[0] == '#' {
			continue
		}
		s = strings.TrimPrefix(s, "export ")
		key, val, ok := strings.Cut(s, "=")
		if !ok {
			continue
		}
		secrets[strings.TrimSpace(key)] = stripQuotes(strings.TrimSpace(val))
	}
	return secrets, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
