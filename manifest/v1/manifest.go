package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"

	"github.com/Masterminds/semver/v3"
	"sigs.k8s.io/yaml"
)

// ErrInvalidModel is returned for archives whose manifest is missing, unreadable or incomplete.
var ErrInvalidModel = errors.New("invalid model")

// Locations lists the manifest paths inside an archive in lookup order.
var Locations = []string{
	"MAR-INF/MANIFEST.json",
	"MANIFEST.json",
	"manifest.yaml",
	"manifest.yml",
}

// Manifest describes the model contained in an archive.
type Manifest struct {
	CreatedOn       string `json:"createdOn,omitempty"`
	Description     string `json:"description,omitempty"`
	ArchiverVersion string `json:"archiverVersion,omitempty"`
	// Runtime names the runtime the model is served with, e.g. "python".
	Runtime string `json:"runtime"`
	Model   *Model `json:"model"`

	// Extra holds top level sections that are not interpreted here.
	// They are preserved when the manifest is encoded again.
	Extra map[string]any `json:"-"`
}

type Model struct {
	ModelName        string         `json:"modelName"`
	ModelVersion     string         `json:"modelVersion"`
	Description      string         `json:"description,omitempty"`
	Handler          string         `json:"handler,omitempty"`
	SerializedFile   string         `json:"serializedFile,omitempty"`
	RequirementsFile string         `json:"requirementsFile,omitempty"`
	Extensions       map[string]any `json:"extensions,omitempty"`
}

// knownFields are the top level keys decoded into Manifest fields.
var knownFields = []string{"createdOn", "description", "archiverVersion", "runtime", "model"}

// manifestFields avoids recursion into the custom (un)marshalers.
type manifestFields Manifest

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var fields manifestFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range knownFields {
		delete(all, key)
	}
	*m = Manifest(fields)
	if len(all) > 0 {
		m.Extra = all
	}
	return nil
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(manifestFields(m))
	if err != nil || len(m.Extra) == 0 {
		return raw, err
	}
	var all map[string]any
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	merged := maps.Clone(m.Extra)
	maps.Copy(merged, all)
	return json.Marshal(merged)
}

// Name returns the model name or the empty string for manifests without a model section.
func (m *Manifest) Name() string {
	if m == nil || m.Model == nil {
		return ""
	}
	return m.Model.ModelName
}

// Version returns the model version or the empty string for manifests without a model section.
func (m *Manifest) Version() string {
	if m == nil || m.Model == nil {
		return ""
	}
	return m.Model.ModelVersion
}

// SemVer interprets the model version as a semantic version.
// Versions such as "1.0" or "v2" are accepted and completed.
func (m *Manifest) SemVer() (*semver.Version, error) {
	version := m.Version()
	if version == "" {
		return nil, fmt.Errorf("manifest has no model version")
	}
	return semver.NewVersion(version)
}

// Decode parses a manifest in JSON or YAML form. It does not validate it.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: unable to decode manifest: %w", ErrInvalidModel, err)
	}
	return &m, nil
}

// Locate returns the path of the manifest within fsys.
func Locate(fsys fs.FS) (string, error) {
	for _, location := range Locations {
		fi, err := fs.Stat(fsys, location)
		switch {
		case err == nil && fi.Mode().IsRegular():
			return location, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", fmt.Errorf("unable to access %s: %w", location, err)
		}
	}
	return "", fmt.Errorf("%w: manifest not found", ErrInvalidModel)
}

// Load locates, decodes and validates the manifest in fsys.
func Load(fsys fs.FS) (*Manifest, error) {
	location, err := Locate(fsys)
	if err != nil {
		return nil, err
	}
	raw, err := fs.ReadFile(fsys, location)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read %s: %w", ErrInvalidModel, location, err)
	}
	m, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	if err := ValidateRawYAML(raw); err != nil {
		return nil, fmt.Errorf("%w: %s does not match the manifest schema: %w", ErrInvalidModel, location, err)
	}
	return m, nil
}
