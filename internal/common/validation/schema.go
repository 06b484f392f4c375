package validation

import (
	"fmt"
	"sort"
	"strings"

	"intake-crm-workers/pkg/registry"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins the errors into a single line suitable for a job error message.
func (r *ValidationResult) Summary() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

type compiled struct {
	input  *gojsonschema.Schema
	output *gojsonschema.Schema
}

// Validator checks job variables against the schemas published in the activity registry.
type Validator struct {
	schemas map[string]compiled
}

func NewValidator(reg *registry.ActivityRegistry) (*Validator, error) {
	v := &Validator{schemas: make(map[string]compiled, len(reg.Activities))}

	for _, a := range reg.Activities {
		var c compiled
		var err error

		if len(a.InputSchema) > 0 {
			if c.input, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.InputSchema)); err != nil {
				return nil, fmt.Errorf("compile input schema for %s: %w", a.TaskType, err)
			}
		}
		if len(a.OutputSchema) > 0 {
			if c.output, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(a.OutputSchema)); err != nil {
				return nil, fmt.Errorf("compile output schema for %s: %w", a.TaskType, err)
			}
		}
		v.schemas[a.TaskType] = c
	}

	return v, nil
}

// NewDefaultValidator compiles the embedded registry.
func NewDefaultValidator() (*Validator, error) {
	reg, err := registry.Default()
	if err != nil {
		return nil, err
	}
	return NewValidator(reg)
}

// ValidateInput validates raw job variables. Task types without a schema pass.
func (v *Validator) ValidateInput(taskType string, variables []byte) *ValidationResult {
	c, ok := v.schemas[taskType]
	if !ok {
		return unknownTaskType(taskType)
	}
	if c.input == nil {
		return &ValidationResult{Valid: true}
	}
	if len(variables) == 0 {
		variables = []byte("{}")
	}
	return check(c.input, gojsonschema.NewBytesLoader(variables))
}

// ValidateOutput validates a handler's output before it is sent to the broker.
func (v *Validator) ValidateOutput(taskType string, output interface{}) *ValidationResult {
	c, ok := v.schemas[taskType]
	if !ok {
		return unknownTaskType(taskType)
	}
	if c.output == nil {
		return &ValidationResult{Valid: true}
	}
	return check(c.output, gojsonschema.NewGoLoader(output))
}

func check(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "MALFORMED_DOCUMENT"}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{Errors: errs}
}

func unknownTaskType(taskType string) *ValidationResult {
	return &ValidationResult{
		Errors: []ValidationError{{
			Field:   "taskType",
			Message: fmt.Sprintf("no schema registered for %q", taskType),
			Code:    "UNKNOWN_TASK_TYPE",
		}},
	}
}
