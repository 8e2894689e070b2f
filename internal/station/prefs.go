package station

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prefs is the station state kept across restarts.
type Prefs struct {
	DarkMode bool `yaml:"darkMode"`
}

// PrefsStore reads and writes Prefs in a YAML file.
type PrefsStore struct {
	Path string
}

// Load returns zero Prefs when the file does not exist yet.
func (s PrefsStore) Load() (Prefs, error) {
	var p Prefs
	if s.Path == "" {
		return p, nil
	}
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parsing %s: %w", s.Path, err)
	}
	return p, nil
}

func (s PrefsStore) Save(p Prefs) error {
	if s.Path == "" {
		return nil
	}
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, b, 0o644)
}
