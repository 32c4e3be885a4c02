package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"
)

// MissingFieldError reports a required manifest field that is absent or empty.
type MissingFieldError struct {
	// Field is the dotted path of the field, e.g. "model.modelName".
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: manifest is missing required field %q", ErrInvalidModel, e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrInvalidModel
}

// Validate checks that all fields required to serve the model are present.
// A manifest is either fully valid or rejected with the first missing field.
func Validate(m *Manifest) error {
	switch {
	case m == nil || m.Model == nil:
		return &MissingFieldError{Field: "model"}
	case m.Model.ModelName == "":
		return &MissingFieldError{Field: "model.modelName"}
	case m.Model.ModelVersion == "":
		return &MissingFieldError{Field: "model.modelVersion"}
	case m.Runtime == "":
		return &MissingFieldError{Field: "runtime"}
	}
	return nil
}

// JSONSchema contains the embedded JSON schema for model archive manifests.
//
//go:embed resources/schema.json
var JSONSchema []byte

// GetJSONSchema compiles the JSON schema once and caches it for reuse.
var GetJSONSchema = sync.OnceValues[*jsonschema.Schema, error](func() (*jsonschema.Schema, error) {
	const schemaFile = "resources/schema.json"
	unmarshaled, err := jsonschema.UnmarshalJSON(bytes.NewReader(JSONSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaFile, unmarshaled); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	sch, err := c.Compile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
})

// ValidateRawJSON validates a raw JSON manifest against the manifest schema.
func ValidateRawJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return validateDocument(doc)
}

// ValidateRawYAML validates a raw YAML (or JSON) manifest against the manifest schema.
func ValidateRawYAML(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return validateDocument(doc)
}

func validateDocument(doc any) error {
	schema, err := GetJSONSchema()
	if err != nil {
		return fmt.Errorf("failed to get schema: %w", err)
	}
	return schema.Validate(doc)
}
