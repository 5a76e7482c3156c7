package parseclientcsv

import "nylta-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"sessionId", "csvText"},
		Properties: map[string]validation.Property{
			"sessionId": {
				Type:        "string",
				Description: "Wizard session identifier",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"csvText": {
				Type:        "string",
				Description: "Uploaded client CSV, header row first",
				MinLength:   validation.IntPtr(1),
			},
		},
		AdditionalProperties: true,
	}
}
