// Package render encodes model archives and manifests for command output.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"sigs.k8s.io/yaml"

	"ocm.software/open-component-model/bindings/go/modelarchive"
	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Archive is the serialized form of a registered model archive.
type Archive struct {
	Name         string    `json:"name"`
	ModelName    string    `json:"modelName"`
	ModelVersion string    `json:"modelVersion"`
	Runtime      string    `json:"runtime,omitempty"`
	Kind         string    `json:"kind"`
	Reference    string    `json:"reference"`
	Path         string    `json:"path"`
	ArchivePath  string    `json:"archivePath,omitempty"`
	AlreadyLocal bool      `json:"alreadyLocal"`
	InPlace      bool      `json:"inPlace,omitempty"`
	Digest       string    `json:"digest,omitempty"`
	AcquiredAt   time.Time `json:"acquiredAt"`
}

func newArchive(a *modelarchive.ModelArchive) Archive {
	return Archive{
		Name:         a.Name(),
		ModelName:    a.ModelName(),
		ModelVersion: a.ModelVersion(),
		Runtime:      a.Manifest().Runtime,
		Kind:         a.Kind().String(),
		Reference:    a.Reference(),
		Path:         a.Path(),
		ArchivePath:  a.ArchivePath(),
		AlreadyLocal: a.AlreadyLocal(),
		InPlace:      a.InPlace(),
		Digest:       a.Digest().String(),
		AcquiredAt:   a.AcquiredAt(),
	}
}

// Archives writes archives to w in the given format.
func Archives(w io.Writer, format string, archives []*modelarchive.ModelArchive) error {
	views := make([]Archive, len(archives))
	for i, a := range archives {
		views[i] = newArchive(a)
	}

	var data []byte
	var err error
	switch format {
	case FormatTable:
		data = archivesAsTable(views)
	case FormatJSON:
		data, err = json.MarshalIndent(views, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		data, err = yaml.Marshal(views)
	default:
		err = fmt.Errorf("unknown output format: %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding model archives as %q failed: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

func archivesAsTable(archives []Archive) []byte {
	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.AppendHeader(table.Row{"Name", "Model", "Version", "Runtime", "Source", "Path"})
	for _, a := range archives {
		t.AppendRow(table.Row{a.Name, a.ModelName, a.ModelVersion, a.Runtime, a.Kind, a.Path})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
	return buf.Bytes()
}

// Manifest writes m to w as JSON or YAML.
func Manifest(w io.Writer, format string, m *manifestv1.Manifest) error {
	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(m, "", "  ")
		data = append(data, '\n')
	case FormatYAML:
		data, err = yaml.Marshal(m)
	default:
		err = fmt.Errorf("unknown output format: %q", format)
	}
	if err != nil {
		return fmt.Errorf("encoding manifest as %q failed: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}
