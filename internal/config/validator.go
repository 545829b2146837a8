package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

//go:embed schema/config.cue
var configSchemaCUE []byte

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// Validator validates configuration against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator creates a new configuration validator.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	compiled := ctx.CompileBytes(configSchemaCUE, cue.Filename("config.cue"))
	if compiled.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", compiled.Err())
	}

	schema := compiled.LookupPath(cue.ParsePath("#Config"))
	if !schema.Exists() {
		return nil, fmt.Errorf("schema has no #Config definition")
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// ValidateBytes validates raw YAML config content against the schema.
func (v *Validator) ValidateBytes(data []byte) error {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ValidationErrors{{Field: "(file)", Message: err.Error()}}
	}

	unified := v.schema.Unify(v.ctx.Encode(raw))
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		field := strings.Join(e.Path(), ".")
		if field == "" {
			field = "(root)"
		}
		format, args := e.Msg()
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	return errs
}

// ValidateFile validates a configuration file at the given path, first
// against the schema and then semantically.
func (v *Validator) ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := v.ValidateBytes(data); err != nil {
		return err
	}

	loader := NewLoader()
	loader.DotEnv = ""
	cfg, err := loader.LoadWithDefaults(path)
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}

	return v.Validate(cfg)
}

// Validate runs semantic checks that the schema cannot express.
func (v *Validator) Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Timeout <= 0 {
		errs = append(errs, ValidationError{Field: "timeout", Message: "must be positive"})
	}

	seen := make(map[string]bool, len(cfg.AlwaysInclude))
	for _, name := range cfg.AlwaysInclude {
		if seen[name] {
			errs = append(errs, ValidationError{Field: "alwaysInclude", Message: fmt.Sprintf("duplicate folder %q", name)})
		}
		seen[name] = true
	}

	for i, p := range cfg.Phases {
		field := fmt.Sprintf("phases.%d", i)
		if filepath.IsAbs(p.Dir) {
			errs = append(errs, ValidationError{Field: field + ".dir", Message: "must be relative to the extracted tree"})
		}
		fields, err := shell.Fields(p.Command, nil)
		if err != nil {
			errs = append(errs, ValidationError{Field: field + ".command", Message: err.Error()})
			continue
		}
		if len(fields) == 0 {
			errs = append(errs, ValidationError{Field: field + ".command", Message: "must not be empty"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
