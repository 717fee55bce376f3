// JSON Schema validation for inbound edit events.

package editwire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// eventSchema is the wire contract for edit events. Unknown fields are
// rejected so protocol drift surfaces at the boundary instead of being
// silently dropped.
const eventSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "reviewd/edit-event-v1.schema.json",
  "type": "object",
  "required": ["document_id", "fragments"],
  "additionalProperties": false,
  "properties": {
    "document_id": {
      "type": "string",
      "minLength": 1
    },
    "fragments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["inserted"],
        "additionalProperties": false,
        "properties": {
          "inserted": {"type": "string"},
          "deleted": {"type": "integer", "minimum": 0}
        }
      }
    },
    "timestamp": {
      "type": "string",
      "format": "date-time"
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("edit-event-v1.schema.json", eventSchema)

// Validate checks raw JSON against the edit-event schema.
func Validate(data []byte) error {
	var instance any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	if err := compiledSchema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}
