package featureflags

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFlags is the YAML shape of a flag definition file:
//
//	flags:
//	  live_counts: on
//	  new_composer: 25%
type fileFlags struct {
	Flags map[string]string `yaml:"flags"`
}

// LoadFile reads flag definitions from a YAML file.
func LoadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flags file: %w", err)
	}

	var parsed fileFlags
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse flags file %s: %w", path, err)
	}

	out := make(map[string]string, len(parsed.Flags))
	for key, value := range parsed.Flags {
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out, nil
}

// NewManagerFromSources builds a manager from the inline config string,
// then overlays definitions from the YAML file when a path is set. File
// entries win over inline ones.
func NewManagerFromSources(raw, path string) (*Manager, error) {
	m := NewManager(raw)
	if path == "" {
		return m, nil
	}

	fromFile, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	for key, value := range fromFile {
		m.flags[key] = value
	}
	return m, nil
}
