// ABOUTME: JSON Schema validation of assistant replies
// ABOUTME: Rejects provider output that does not match the declared reply structure

package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNonConformingOutput means the provider answered, but not with the reply
// structure the assistant asked for.
var ErrNonConformingOutput = errors.New("provider returned non-conforming output")

const replySchemaJSON = `{
  "type": "object",
  "properties": {
    "answer": {
      "type": "string",
      "minLength": 1,
      "pattern": "\\S",
      "description": "A helpful response to the user's question"
    },
    "taskSuggestion": {
      "type": "object",
      "properties": {
        "title": { "type": "string" },
        "description": { "type": "string" },
        "priority": { "type": "string", "enum": ["Low", "Medium", "High"] },
        "estimatedHours": { "type": "number" }
      },
      "required": ["title", "description", "priority"]
    }
  },
  "required": ["answer"]
}`

var replySchema = jsonschema.MustCompileString("reply.json", replySchemaJSON)

// Suggestion is a task the assistant proposes.
type Suggestion struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"` // Low, Medium or High
	EstimatedHours *float64 `json:"estimatedHours,omitempty"`
}

// Reply is the decoded assistant response.
type Reply struct {
	Answer         string      `json:"answer"`
	TaskSuggestion *Suggestion `json:"taskSuggestion,omitempty"`
}

// ValidateReply checks raw provider content against the reply schema.
// The answer must contain something besides whitespace.
// Failures wrap ErrNonConformingOutput.
func ValidateReply(content string) error {
	var doc interface{}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return fmt.Errorf("%w: not JSON: %v", ErrNonConformingOutput, err)
	}
	if err := replySchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrNonConformingOutput, schemaMessage(err))
	}
	return nil
}

// ParseReply validates content and decodes it.
func ParseReply(content string) (*Reply, error) {
	if err := ValidateReply(content); err != nil {
		return nil, err
	}
	var r Reply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonConformingOutput, err)
	}
	return &r, nil
}

// schemaMessage reduces a validation error to its first leaf cause.
func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return strings.TrimSpace(loc + ": " + ve.Message)
}
