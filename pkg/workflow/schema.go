package workflow

// definitionSchema is the JSON Schema a workflow definition document must
// satisfy before it is unmarshalled. It catches shape errors (wrong types,
// missing required keys, unknown trigger/step kinds) early with readable
// messages; semantic checks like step references live in the validator.
const definitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "name", "object_type", "trigger_type", "first_step_id", "steps"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"tenant_id": {"type": "string"},
		"object_type": {"type": "string", "minLength": 1},
		"trigger_type": {
			"type": "string",
			"enum": ["record_created", "record_updated", "field_changed", "manual"]
		},
		"trigger_config": {
			"type": "object",
			"properties": {
				"field": {"type": "string", "minLength": 1},
				"from": {},
				"to": {}
			},
			"required": ["field"]
		},
		"first_step_id": {"type": "string", "minLength": 1},
		"is_active": {"type": "boolean"},
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "kind"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"kind": {
						"type": "string",
						"enum": [
							"send_email", "send_sms", "create_task", "update_field",
							"webhook", "branch", "wait", "loop", "end"
						]
					},
					"name": {"type": "string"},
					"next_step_id": {"type": "string"}
				}
			}
		}
	}
}`
