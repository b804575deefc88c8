package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/model/contract"

	"github.com/kaptinlin/jsonrepair"
)

// Output declares the shape of a scenario's final answer.
type Output struct {
	Name        string
	Description string
	Definition  map[string]interface{}
	// ItemsField names the top-level array holding the result items.
	ItemsField string
	// RecordFields are the item fields flattened into delivered records.
	RecordFields []string
}

// Item is one result entry of a Structured Answer.
type Item map[string]interface{}

// Answer is a schema-valid terminal payload.
type Answer struct {
	Raw   map[string]interface{}
	Items []Item
}

// ResponseFormat builds the request option that targets this output.
func (o *Output) ResponseFormat() *contract.ResponseFormat {
	return &contract.ResponseFormat{
		Name:        o.Name,
		Description: o.Description,
		Schema:      o.Definition,
	}
}

// Parse turns a model emission into an Answer. Fenced or chatty JSON is
// extracted and repaired before validation. Validation is all-or-nothing: an
// invalid emission yields ErrInvalidModelOutput and no answer.
func (o *Output) Parse(text string) (*Answer, error) {
	candidate := cleanModelJSON(text)
	if candidate == "" {
		return nil, scoutErrors.InvalidModelOutput("empty structured response")
	}
	if !strings.HasPrefix(candidate, "{") {
		if obj := extractFirstBalancedJSON(candidate, '{', '}'); obj != "" {
			candidate = obj
		}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, scoutErrors.InvalidModelOutput(fmt.Sprintf("structured response is not JSON: %v", err))
		}
		raw = nil
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return nil, scoutErrors.InvalidModelOutput(fmt.Sprintf("structured response is not a JSON object: %v", err))
		}
	}
	if raw == nil {
		return nil, scoutErrors.InvalidModelOutput("structured response is not a JSON object")
	}

	answer := &Answer{Raw: raw}
	if err := o.Validate(answer); err != nil {
		return nil, err
	}
	answer.Items = o.items(raw)

	return answer, nil
}

// Validate re-checks an answer against the definition. It never mutates the answer.
func (o *Output) Validate(answer *Answer) error {
	if answer == nil || answer.Raw == nil {
		return scoutErrors.InvalidModelOutput("structured response is missing")
	}
	if err := Validate(o.Definition, answer.Raw); err != nil {
		return scoutErrors.InvalidModelOutput(fmt.Sprintf("structured response does not match %s: %v", o.Name, err))
	}
	if o.ItemsField != "" {
		if _, ok := answer.Raw[o.ItemsField].([]interface{}); !ok {
			return scoutErrors.InvalidModelOutput(fmt.Sprintf("structured response has no %s list", o.ItemsField))
		}
	}
	return nil
}

func (o *Output) items(raw map[string]interface{}) []Item {
	list, _ := raw[o.ItemsField].([]interface{})
	items := make([]Item, 0, len(list))
	for _, entry := range list {
		if obj, ok := entry.(map[string]interface{}); ok {
			items = append(items, Item(obj))
		}
	}
	return items
}

func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractFirstBalancedJSON(input string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return strings.TrimSpace(input[start : i+1])
			}
		}
	}
	return ""
}
