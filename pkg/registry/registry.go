// Package registry holds the closed vocabulary of step types and validates
// builder-supplied step content against per-type JSON schemas.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/leadrail/leadrail/pkg/models"
)

// Registry maps step types to their content schemas.
type Registry struct {
	logger  *slog.Logger
	schemas map[models.StepType]map[string]any
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger.With("module", "registry"),
		schemas: make(map[models.StepType]map[string]any),
	}
}

// RegisterStepType registers the content schema for a step type, replacing any
// earlier registration.
func (r *Registry) RegisterStepType(stepType models.StepType, schema map[string]any) {
	r.schemas[stepType] = schema
}

// Registered reports whether the step type has a schema.
func (r *Registry) Registered(stepType models.StepType) bool {
	_, ok := r.schemas[stepType]

	return ok
}

// StepTypes returns the registered step types.
func (r *Registry) StepTypes() []models.StepType {
	types := make([]models.StepType, 0, len(r.schemas))
	for stepType := range r.schemas {
		types = append(types, stepType)
	}

	return types
}

// ValidateStep checks a step's content against its type schema. Unregistered
// step types pass: the runtime skips them at render time instead of failing the
// whole funnel.
func (r *Registry) ValidateStep(step *models.Step) error {
	schema, ok := r.schemas[step.Type]
	if !ok {
		return nil
	}

	content := step.Content
	if content == nil {
		content = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(content)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate step %s: %w", step.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("step %s content invalid: %s", step.ID, strings.Join(details, "; "))
	}

	return nil
}

// ValidateFunnel validates every known-typed step of a funnel. The first
// invalid step fails the whole funnel: a published funnel must be fully
// renderable.
func (r *Registry) ValidateFunnel(funnel *models.Funnel) error {
	for _, step := range funnel.Steps {
		if !step.Type.Known() {
			r.logger.Warn("Skipping unknown step type",
				"funnel_id", funnel.ID, "step_id", step.ID, "step_type", step.Type)

			continue
		}

		err := r.ValidateStep(step)
		if err != nil {
			return err
		}
	}

	return nil
}
