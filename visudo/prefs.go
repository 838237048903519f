package visudo

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Prefs is the operator's optional per-user visudo configuration,
// loaded from ~/.config/sudo-rs-sub002/visudo.yaml (§4.V).
type Prefs struct {
	// DiffMode is read from the preferences file; nothing in this package
	// acts on it, so Edit and Validate behave the same either way.
	DiffMode bool `yaml:"diff_mode"`

	// Editor overrides SUDO_EDITOR/VISUAL/EDITOR when set, taking
	// precedence over every environment-variable source but still
	// subject to env_editor being enabled.
	Editor string `yaml:"editor"`
}

// LoadPrefs reads the operator's preferences file, returning zero-value
// Prefs (everything disabled) if it does not exist.
func LoadPrefs() (Prefs, error) {
	path, err := prefsPath()
	if err != nil {
		return Prefs{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Prefs{}, nil
		}
		return Prefs{}, errors.Wrap(err, "reading visudo preferences")
	}

	var p Prefs
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prefs{}, errors.Wrap(err, "parsing visudo preferences")
	}
	return p, nil
}

func prefsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".config", "sudo-rs-sub002", "visudo.yaml"), nil
}
