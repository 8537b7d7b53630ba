package toolsetup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/testcoord/internal/fault"
)

// DefaultManifestPath is where the .NET CLI keeps the local tool manifest,
// relative to the directory tools are run from.
var DefaultManifestPath = filepath.Join(".config", "dotnet-tools.json")

// Tool is one entry of a local tool manifest.
type Tool struct {
	Version  string   `json:"version"`
	Commands []string `json:"commands"`
}

// Manifest is a parsed local tool manifest.
type Manifest struct {
	Version int             `json:"version"`
	IsRoot  bool            `json:"isRoot"`
	Tools   map[string]Tool `json:"tools"`

	path string
}

// ReadManifest reads the manifest at path. A missing or unreadable manifest
// is a *fault.SetupError.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path is caller-controlled
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &fault.SetupError{
			What:   path,
			Reason: "no .NET CLI local tool manifest file found; was the .config folder removed?",
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &fault.SetupError{What: path, Reason: "invalid tool manifest: " + err.Error()}
	}
	m.path = path
	return &m, nil
}

// Path returns the file the manifest was read from.
func (m *Manifest) Path() string {
	return m.path
}

// Dir returns the directory tool commands must run in: the parent of the
// .config folder holding the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(filepath.Dir(m.path))
}

// RequireTool returns the entry for the tool with the given package id. Ids
// are matched case-insensitively, like the .NET CLI does.
func (m *Manifest) RequireTool(id string) (Tool, error) {
	for name, tool := range m.Tools {
		if strings.EqualFold(name, id) {
			return tool, nil
		}
	}
	return Tool{}, &fault.SetupError{
		What:   id,
		Reason: fmt.Sprintf("there was no %s configuration in the local tool manifest %s", id, m.path),
	}
}
