package translation

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

//go:embed breweries.json
var defaultDictionaryJSON []byte

// Dictionary maps source text to a fixed translation. It is read-only after
// LoadDictionary returns and safe for concurrent use.
type Dictionary struct {
	entries map[string]string
}

// LoadDictionary returns the built-in brewery dictionary merged with the
// JSON object at path. Entries from path win. A missing file is not an error.
func LoadDictionary(path string) (*Dictionary, error) {
	entries := make(map[string]string)
	if err := mergeDictionary(entries, defaultDictionaryJSON); err != nil {
		return nil, fmt.Errorf("parse built-in dictionary: %w", err)
	}

	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read overrides %q: %w", path, err)
		default:
			if err := mergeDictionary(entries, data); err != nil {
				return nil, fmt.Errorf("parse overrides %q: %w", path, err)
			}
		}
	}
	return &Dictionary{entries: entries}, nil
}

// NewDictionary builds a dictionary from explicit entries.
func NewDictionary(entries map[string]string) *Dictionary {
	out := make(map[string]string, len(entries))
	for source, target := range entries {
		if source = strings.TrimSpace(source); source != "" {
			out[source] = strings.TrimSpace(target)
		}
	}
	return &Dictionary{entries: out}
}

// Lookup returns the override for text, matched exactly after trimming.
func (d *Dictionary) Lookup(text string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.entries[strings.TrimSpace(text)]
	return v, ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

func mergeDictionary(dst map[string]string, data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for source, target := range raw {
		source = strings.TrimSpace(source)
		target = strings.TrimSpace(target)
		if source == "" || target == "" {
			continue
		}
		dst[source] = target
	}
	return nil
}
