package cipher

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse decodes a JSON spec and runs structural validation on it.
// Unknown fields are rejected so a misspelled key never silently falls
// back to a zero value.
func Parse(data []byte) (*Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var spec Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing cipher spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
