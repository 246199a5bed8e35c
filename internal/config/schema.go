package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/withgradle/internal/foundation/errors"
)

const schemaID = "https://git.home.luguber.info/inful/withgradle/schemas/config-v1.json"

// Schema produces a JSON Schema document describing the configuration file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
	}

	s := r.Reflect(&Config{})
	s.ID = schemaID
	s.Title = "withgradle configuration v1"
	s.Description = "Schema for withgradle YAML configuration files"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// Violation is one schema mismatch, located by its slash-separated instance path.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidateFile checks a config file against Schema without expanding variables.
func ValidateFile(path string) ([]Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).
			Build()
	}
	return ValidateDocument(data)
}

// ValidateDocument checks raw YAML against Schema. A nil slice means the document conforms.
func ValidateDocument(data []byte) ([]Violation, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return []Violation{{Message: err.Error()}}, nil
	}
	if raw == nil {
		raw = map[string]any{}
	}

	// Round-trip through JSON so numbers and maps have the shapes the validator expects.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return []Violation{{Message: fmt.Sprintf("convert document: %v", err)}}, nil
	}
	var doc any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to decode converted document").Build()
	}

	schemaJSON, err := Schema()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to generate schema").Build()
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to decode schema").Build()
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("config-v1.json", schemaDoc); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to add schema resource").Build()
	}
	sch, err := c.Compile("config-v1.json")
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to compile schema").Build()
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []Violation{{Message: err.Error()}}, nil
		}
		var out []Violation
		for _, cause := range leafErrors(ve) {
			out = append(out, Violation{
				Path:    strings.Join(cause.InstanceLocation, "/"),
				Message: fmt.Sprintf("%v", cause.ErrorKind),
			})
		}
		return out, nil
	}
	return nil, nil
}

func leafErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, leafErrors(cause)...)
	}
	return flat
}
