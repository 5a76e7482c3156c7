package draftstore

// wizardStateSchema guards what is written to the store. It checks shape and
// enums only; step completeness is the wizard's concern.
const wizardStateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["clients", "step", "attestation"],
  "properties": {
    "step": {"type": "integer", "minimum": 1, "maximum": 6},
    "clients": {
      "type": "array",
      "items": {"$ref": "#/definitions/client"}
    },
    "attestation": {
      "oneOf": [
        {"type": "null"},
        {
          "type": "object",
          "required": ["signature", "fullName", "initials", "title", "date"],
          "properties": {
            "signature": {"type": "string"},
            "fullName": {"type": "string"},
            "initials": {"type": "string"},
            "title": {"type": "string"},
            "date": {"type": "string"}
          }
        }
      ]
    },
    "lastRun": {
      "type": "object",
      "required": ["orderNumber", "status", "submittedClientIds"],
      "properties": {
        "batchId": {"type": "string"},
        "orderNumber": {"type": "string", "minLength": 1},
        "status": {"enum": ["complete", "error"]},
        "errors": {"type": ["array", "null"]},
        "submittedClientIds": {"type": ["array", "null"], "items": {"type": "string"}}
      }
    }
  },
  "definitions": {
    "person": {
      "type": "object",
      "required": ["id", "fullName"],
      "properties": {
        "id": {"type": "string"},
        "fullName": {"type": "string"}
      }
    },
    "client": {
      "type": "object",
      "required": ["id", "llcName", "entityType", "filingType", "serviceType", "companyApplicants", "beneficialOwners"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "llcName": {"type": "string"},
        "entityType": {"enum": ["domestic", "foreign"]},
        "filingType": {"enum": ["disclosure", "exemption"]},
        "serviceType": {"enum": ["monitoring", "filing"]},
        "contactEmail": {"type": "string"},
        "companyApplicants": {
          "type": "array",
          "maxItems": 3,
          "items": {"$ref": "#/definitions/person"}
        },
        "beneficialOwners": {
          "type": "array",
          "maxItems": 9,
          "items": {"$ref": "#/definitions/person"}
        }
      }
    }
  }
}`
