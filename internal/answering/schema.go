package answering

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// choiceSchema validates the generative backend's choice selection
// payload before the index is trusted.
const choiceSchema = `{
	"type": "object",
	"properties": {
		"choice": {"type": "integer", "minimum": 0}
	},
	"required": ["choice"],
	"additionalProperties": false
}`

var choiceSchemaLoader = gojsonschema.NewStringLoader(choiceSchema)

type choicePayload struct {
	Choice int `json:"choice"`
}

// parseChoicePayload validates and decodes a {"choice": n} response.
// The index is additionally range-checked against the option count.
func parseChoicePayload(raw string, optionCount int) (int, error) {
	result, err := gojsonschema.Validate(choiceSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return 0, fmt.Errorf("choice payload is not valid JSON: %w", err)
	}
	if !result.Valid() {
		return 0, fmt.Errorf("choice payload failed validation: %s", result.Errors()[0].String())
	}

	var payload choicePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return 0, fmt.Errorf("failed to decode choice payload: %w", err)
	}
	if payload.Choice < 0 || payload.Choice >= optionCount {
		return 0, fmt.Errorf("choice index %d out of range for %d options", payload.Choice, optionCount)
	}
	return payload.Choice, nil
}
