package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	manifestv1 "ocm.software/open-component-model/bindings/go/modelarchive/manifest/v1"
)

func TestArchivesEmpty(t *testing.T) {
	r := require.New(t)
	var buf bytes.Buffer
	r.NoError(Archives(&buf, FormatJSON, nil))
	r.JSONEq("[]", buf.String())

	buf.Reset()
	r.NoError(Archives(&buf, FormatTable, nil))
	r.Contains(buf.String(), "NAME")

	r.ErrorContains(Archives(&buf, "xml", nil), `unknown output format: "xml"`)
}

func TestManifest(t *testing.T) {
	r := require.New(t)
	m := &manifestv1.Manifest{
		Runtime: "python",
		Model:   &manifestv1.Model{ModelName: "noop", ModelVersion: "1.0"},
		Extra:   map[string]any{"publisher": "ocm"},
	}

	var buf bytes.Buffer
	r.NoError(Manifest(&buf, FormatJSON, m))
	r.JSONEq(`{"runtime":"python","model":{"modelName":"noop","modelVersion":"1.0"},"publisher":"ocm"}`, buf.String())

	buf.Reset()
	r.NoError(Manifest(&buf, FormatYAML, m))
	r.Contains(buf.String(), "publisher: ocm")

	r.Error(Manifest(&buf, FormatTable, m))
}
