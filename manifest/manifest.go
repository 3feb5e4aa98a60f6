// Package manifest handles denatural.toml program configuration.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// FileName is the manifest file looked up in a program directory.
const FileName = "denatural.toml"

// Output formats understood by the CLI.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Manifest represents a denatural.toml program configuration.
type Manifest struct {
	Program Program `toml:"program"`
	Output  Output  `toml:"output"`

	// Dir is the directory containing the denatural.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program describes the instructions to assemble into a chunk.
type Program struct {
	Name   string   `toml:"name"`
	Source string   `toml:"source"`
	Code   []string `toml:"code"`
}

// Output configures how the disassembly is written.
type Output struct {
	Format string `toml:"format"`
	Path   string `toml:"path"`
}

// Load parses a denatural.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Program.Name == "" {
		m.Program.Name = "chunk_" + uuid.New().String()
	}
	if m.Output.Format == "" {
		m.Output.Format = FormatText
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &m, nil
}

// Find returns the nearest directory at or above startDir that holds a
// denatural.toml, or "" when there is none up to the filesystem root.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(dir, FileName))
		if err == nil && !info.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// FindAndLoad loads the manifest found by Find. It returns nil, nil when
// no directory above startDir has one.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := Find(startDir)
	if err != nil || dir == "" {
		return nil, err
	}
	return Load(dir)
}

// CheckFormat reports whether format names an output format the CLI can write.
func CheckFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatCBOR:
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

// Validate checks the manifest for settings the CLI cannot honor.
func (m *Manifest) Validate() error {
	if err := CheckFormat(m.Output.Format); err != nil {
		return err
	}
	if m.Program.Source != "" && len(m.Program.Code) > 0 {
		return fmt.Errorf("program sets both source and code")
	}
	return nil
}

// SourcePath returns the absolute path of the program source, or "" when
// the program is given inline.
func (m *Manifest) SourcePath() string {
	if m.Program.Source == "" {
		return ""
	}
	if filepath.IsAbs(m.Program.Source) {
		return m.Program.Source
	}
	return filepath.Join(m.Dir, m.Program.Source)
}

// OutputPath returns the absolute output path, or "" for standard output.
func (m *Manifest) OutputPath() string {
	if m.Output.Path == "" || filepath.IsAbs(m.Output.Path) {
		return m.Output.Path
	}
	return filepath.Join(m.Dir, m.Output.Path)
}
