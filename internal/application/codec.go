package application

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

// Codec converts credentials to and from the editable serialized view.
type Codec interface {
	Marshal(creds model.Credentials) (string, error)
	Unmarshal(text string) (model.Credentials, error)
}

// YAMLCodec renders credentials as a flat YAML mapping.
type YAMLCodec struct{}

// Compile-time interface satisfaction check.
var _ Codec = YAMLCodec{}

// Marshal returns the YAML document for creds, or "" when creds is empty.
func (YAMLCodec) Marshal(creds model.Credentials) (string, error) {
	if len(creds) == 0 {
		return "", nil
	}
	out, err := yaml.Marshal(map[string]string(creds))
	if err != nil {
		return "", fmt.Errorf("marshal yaml: %w", err)
	}
	return string(out), nil
}

// Unmarshal parses a YAML mapping of label to secret. Empty input yields an
// empty mapping. Non-scalar values are rejected.
func (YAMLCodec) Unmarshal(text string) (model.Credentials, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &ValidationError{Message: "invalid YAML: " + err.Error()}
	}

	creds := make(model.Credentials, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			creds[k] = ""
		case string:
			creds[k] = val
		case bool, int, int64, uint64, float64:
			creds[k] = fmt.Sprint(val)
		default:
			return nil, &ValidationError{Message: fmt.Sprintf("value for %q must be a string", k)}
		}
	}
	return creds, nil
}
