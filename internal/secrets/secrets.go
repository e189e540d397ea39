// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. Keys missing from the directory fall back to
// environment variables named after the key (anthropic-api-key -> ANTHROPIC_API_KEY).
//
// Supported key files: anthropic-api-key, tavily-api-key, crossref-mailto.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Key names understood by the CLI.
const (
	AnthropicAPIKey = "anthropic-api-key"
	TavilyAPIKey    = "tavily-api-key"
	CrossrefMailto  = "crossref-mailto"
)

// Secrets maps key names to values.
type Secrets map[string]string

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// Load reads all files in dir and returns their trimmed contents by filename.
// A missing directory or missing files are not errors; Load returns an empty set.
// Unreadable files produce a warning on w but do not abort.
func Load(dir string, w io.Writer) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(w, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			s[name] = value
		}
	}

	return s, nil
}

// Get returns the value for key, falling back to the matching environment
// variable. It returns "" when neither is set.
func (s Secrets) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	if v, ok := lookupEnv(EnvName(key)); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Keys returns the loaded key names in sorted order. Values are never listed.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvName converts a key file name to its environment variable name.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
