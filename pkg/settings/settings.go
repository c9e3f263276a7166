// Package settings loads the JSON settings document that lists every
// configured target, resolves the platform-specific settings directory,
// and validates target names.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/TechnoStrife/smolsync/pkg/ignore"
)

// FileName is the fixed name of the settings document within the settings
// directory.
const FileName = "smolsync.json"

// Target is one entry of the settings document: the directory it tracks
// and the ignore patterns to apply while scanning it.
type Target struct {
	Root   string   `json:"root"`
	Ignore []string `json:"ignore,omitempty"`
}

// Document is the settings file's top-level shape: a map from target name
// to its configuration.
type Document map[string]Target

// DefaultDir resolves the default settings directory for the current
// platform: %APPDATA%/smolsync on Windows, $HOME/.smolsync elsewhere.
func DefaultDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable is not set")
		}
		return filepath.Join(appData, "smolsync"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to compute path to home directory")
	}
	return filepath.Join(home, ".smolsync"), nil
}

// Path joins the fixed settings file name onto a settings directory.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and parses the settings document at <dir>/smolsync.json.
func Load(dir string) (Document, error) {
	path := Path(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read settings file %s", path)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "unable to parse settings file %s", path)
	}
	for name := range doc {
		if err := EnsureNameValid(name); err != nil {
			return nil, errors.Wrapf(err, "invalid target name %q", name)
		}
	}
	return doc, nil
}

// Save writes the settings document to <dir>/smolsync.json, creating the
// directory if necessary.
func (d Document) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "unable to create settings directory %s", dir)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to encode settings document")
	}
	path := Path(dir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "unable to write settings file %s", path)
	}
	return nil
}

// Select narrows the document to the named targets, in the order given. An
// empty names slice selects every target, sorted by name for deterministic
// output.
func (d Document) Select(names []string) (Document, []string, error) {
	if len(names) == 0 {
		all := make([]string, 0, len(d))
		for name := range d {
			all = append(all, name)
		}
		sort.Strings(all)
		return d, all, nil
	}
	selected := make(Document, len(names))
	for _, name := range names {
		target, ok := d[name]
		if !ok {
			return nil, nil, fmt.Errorf("unknown target: %s", name)
		}
		selected[name] = target
	}
	return selected, names, nil
}

// CompileIgnore compiles a target's ignore pattern list into a matcher.
func (t Target) CompileIgnore() (*ignore.Matcher, error) {
	return ignore.Compile(t.Ignore)
}

// EnsureNameValid ensures that name is usable as a target name. Empty names
// are rejected, since every target in the document must be addressable on
// the command line.
//
// Names must start with a Unicode letter and otherwise contain only
// letters, digits, and dashes. A name containing a dash must not parse as a
// UUID, to avoid ever colliding with a generated identifier in some future
// revision. The literal "defaults" is reserved since it would collide with
// a conventional default-settings key in the JSON document.
func EnsureNameValid(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}

	var containsDash bool
	for i, r := range name {
		if unicode.IsLetter(r) {
			continue
		} else if i == 0 {
			return errors.New("name does not start with a Unicode letter")
		} else if unicode.IsNumber(r) {
			continue
		} else if r == '-' {
			containsDash = true
			continue
		}
		return errors.Errorf("invalid name character at index %d: %q", i, r)
	}

	if containsDash {
		if _, err := uuid.Parse(name); err == nil {
			return errors.New("name must not be a UUID")
		}
	}

	if name == "defaults" {
		return errors.New(`"defaults" is disallowed as a target name`)
	}

	return nil
}
