package validatewizardstep

import "nylta-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"sessionId"},
		Properties: map[string]validation.Property{
			"sessionId": {
				Type:        "string",
				Description: "Wizard session identifier",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"step": {
				Type:        "integer",
				Description: "Wizard step to check, 1 through 6",
				Minimum:     validation.FloatPtr(1),
				Maximum:     validation.FloatPtr(6),
			},
		},
		AdditionalProperties: true,
	}
}
