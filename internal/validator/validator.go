package validator

// The CUE validator is the contract guard at the edges of the generator:
// spec files coming in and manifests going out. A spec file that does not
// match the contract is rejected before any module is built, and a
// manifest that disagrees with its own schedule is never written.

import (
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed spec_schema.cue
var specSchemaFS embed.FS

//go:embed manifest_schema.cue
var manifestSchemaFS embed.FS

// ErrSchema marks contract violations so callers can tell them apart from
// I/O or encoding failures.
var ErrSchema = stderrors.New("schema validation failed")

// Validator checks values against one definition of an embedded schema.
type Validator struct {
	ctx        *cue.Context
	schema     cue.Value
	definition string
}

// NewSpecValidator validates cipher spec files against #CipherSpec.
func NewSpecValidator() (*Validator, error) {
	return load(specSchemaFS, "spec_schema.cue", "#CipherSpec")
}

// NewManifestValidator validates generation manifests against #Manifest.
func NewManifestValidator() (*Validator, error) {
	return load(manifestSchemaFS, "manifest_schema.cue", "#Manifest")
}

func load(fs embed.FS, file, definition string) (*Validator, error) {
	ctx := cuecontext.New()

	schemaBytes, err := fs.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema %s: %w", file, err)
	}

	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", file, schema.Err())
	}
	if def := schema.LookupPath(cue.ParsePath(definition)); def.Err() != nil {
		return nil, fmt.Errorf("looking up %s definition: %w", definition, def.Err())
	}

	return &Validator{
		ctx:        ctx,
		schema:     schema,
		definition: definition,
	}, nil
}

// Validate marshals data to JSON and checks it against the schema.
func (v *Validator) Validate(data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling data to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON checks JSON bytes against the schema. Every value must be
// concrete; a missing field is an error, not an open constraint.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := v.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrSchema, v.definition, flatten(err))
	}
	return nil
}

func (v *Validator) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling JSON as CUE: %w", dataValue.Err())
	}
	def := v.schema.LookupPath(cue.ParsePath(v.definition))
	return def.Unify(dataValue), nil
}

func flatten(err error) string {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}
