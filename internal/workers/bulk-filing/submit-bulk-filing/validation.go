package submitbulkfiling

import "nylta-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"sessionId", "parentFirmId"},
		Properties: map[string]validation.Property{
			"sessionId": {
				Type:        "string",
				Description: "Wizard session identifier",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(128),
			},
			"parentFirmId": {
				Type:        "string",
				Description: "CRM contact id of the filing firm",
				MinLength:   validation.IntPtr(1),
				MaxLength:   validation.IntPtr(64),
			},
			"firmName": {
				Type:        "string",
				Description: "Display name of the filing firm",
				MaxLength:   validation.IntPtr(200),
			},
			"firmEmail": {
				Type:        "string",
				Description: "Address for the order confirmation email",
				Format:      "email",
				MaxLength:   validation.IntPtr(255),
			},
			"retryFailedOnly": {
				Type:        "boolean",
				Description: "Resubmit only the clients listed in previousErrors",
			},
			"orderNumber": {
				Type:        "string",
				Description: "Order number of the batch being retried",
				Pattern:     validation.StrPtr(`^NYLTA-\d{8}-[A-Z0-9]+$`),
			},
			"previousErrors": {
				Type:        "array",
				Description: "Per-client errors of the previous run",
				MaxItems:    validation.IntPtr(500),
				Items: &validation.Property{
					Type:     "object",
					Required: []string{"clientName"},
					Properties: map[string]validation.Property{
						"clientId":   {Type: "string"},
						"clientName": {Type: "string"},
						"error":      {Type: "string"},
					},
				},
			},
		},
		AdditionalProperties: true,
	}
}
