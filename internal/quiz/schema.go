package quiz

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const answerSchemaJSON = `{
  "type": "object",
  "required": ["id", "answer"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "answer": {"type": "string"},
    "recordedAt": {"type": "string", "format": "date-time"}
  }
}`

const responseSchemaJSON = `{
  "type": "object",
  "required": ["journeyId", "stepId", "storageKey", "answer"],
  "properties": {
    "journeyId": {"type": "string", "minLength": 1},
    "stepId": {"type": "string", "minLength": 1},
    "storageKey": {"type": "string", "minLength": 1},
    "prompt": {"type": "string"},
    "answer": {"type": "string"},
    "questionType": {"type": "string"},
    "correctAnswer": {"type": "string"},
    "isCorrect": {"type": ["boolean", "null"]},
    "recordedAt": {"type": "string", "format": "date-time"}
  }
}`

const statsSchemaJSON = `{
  "type": "object",
  "required": ["answered", "correct"],
  "properties": {
    "answered": {"type": "integer", "minimum": 0},
    "graded": {"type": "integer", "minimum": 0},
    "correct": {"type": "integer", "minimum": 0},
    "lastRecordedAt": {"type": "string", "format": "date-time"}
  }
}`

var (
	answerSchema   = mustCompile("answer", answerSchemaJSON)
	responseSchema = mustCompile("journey-response", responseSchemaJSON)
	statsSchema    = mustCompile("stats", statsSchemaJSON)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	url := fmt.Sprintf("https://keepsake.local/schemas/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("quiz: load %s schema: %v", name, err))
	}
	return c.MustCompile(url)
}

// decodeValid validates raw against schema and decodes it into v.
func decodeValid(schema *jsonschema.Schema, raw []byte, v any) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
