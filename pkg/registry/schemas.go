package registry

import (
	"log/slog"

	"github.com/leadrail/leadrail/pkg/models"
)

// NewDefaultRegistry returns a registry with the built-in step vocabulary.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	registry := NewRegistry(logger)

	registry.RegisterStepType(models.StepTypeWelcome, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"headline":    map[string]any{"type": "string"},
			"subheadline": map[string]any{"type": "string"},
			"button_text": map[string]any{"type": "string"},
		},
	})

	registry.RegisterStepType(models.StepTypeTextQuestion, map[string]any{
		"type":     "object",
		"required": []any{"question"},
		"properties": map[string]any{
			"question":    map[string]any{"type": "string", "minLength": 1},
			"placeholder": map[string]any{"type": "string"},
			"is_required": map[string]any{"type": "boolean"},
		},
	})

	registry.RegisterStepType(models.StepTypeMultiChoice, map[string]any{
		"type":     "object",
		"required": []any{"question", "options"},
		"properties": map[string]any{
			"question": map[string]any{"type": "string", "minLength": 1},
			"options": map[string]any{
				"type":     "array",
				"minItems": 2,
				"items":    map[string]any{"type": "string"},
			},
			"allow_multiple": map[string]any{"type": "boolean"},
			"is_required":    map[string]any{"type": "boolean"},
		},
	})

	captureSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":     map[string]any{"type": "string"},
			"placeholder":  map[string]any{"type": "string"},
			"privacy_link": map[string]any{"type": "string"},
			"terms_url":    map[string]any{"type": "string"},
			"terms_link":   map[string]any{"type": "string"},
			"consent_mode": map[string]any{"type": "string"},
			"is_required":  map[string]any{"type": "boolean"},
		},
	}

	registry.RegisterStepType(models.StepTypeEmailCapture, captureSchema)
	registry.RegisterStepType(models.StepTypePhoneCapture, captureSchema)
	registry.RegisterStepType(models.StepTypeOptIn, captureSchema)

	registry.RegisterStepType(models.StepTypeVideo, map[string]any{
		"type":     "object",
		"required": []any{"video_url"},
		"properties": map[string]any{
			"video_url": map[string]any{"type": "string", "minLength": 1},
			"autoplay":  map[string]any{"type": "boolean"},
		},
	})

	registry.RegisterStepType(models.StepTypeEmbed, map[string]any{
		"type":     "object",
		"required": []any{"embed_url"},
		"properties": map[string]any{
			"embed_url": map[string]any{"type": "string", "minLength": 1},
		},
	})

	registry.RegisterStepType(models.StepTypeThankYou, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"headline":     map[string]any{"type": "string"},
			"message":      map[string]any{"type": "string"},
			"redirect_url": map[string]any{"type": "string"},
		},
	})

	return registry
}
