package llmrt

import (
	"encoding/json"

	"github.com/openai/openai-go/v3"
)

// ToolDeclaration describes a callable tool's name, purpose, and parameter
// schema to a provider. Execution of the tool is out of scope: callers
// surface ToolCall blocks from the response and feed ToolResponse blocks
// back in on the next turn themselves (§1).
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// NewToolDeclaration creates a tool declaration with an empty object schema.
//
//	decl := llmrt.NewToolDeclaration("get_weather", "Get weather for a location").
//	    AddParameter("location", "string", "City name", true)
func NewToolDeclaration(name, description string) *ToolDeclaration {
	return &ToolDeclaration{
		Name:        name,
		Description: description,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
	}
}

// AddParameter adds a parameter to the tool's schema.
func (t *ToolDeclaration) AddParameter(name, paramType, description string, required bool) *ToolDeclaration {
	props := t.Parameters["properties"].(map[string]interface{})
	props[name] = map[string]interface{}{
		"type":        paramType,
		"description": description,
	}

	if required {
		reqs := t.Parameters["required"].([]string)
		t.Parameters["required"] = append(reqs, name)
	}

	return t
}

// ToOpenAI converts the declaration to OpenAI's ChatCompletionToolUnionParam
// wire format, shared by the chat-completions and responses adapters.
func (t *ToolDeclaration) ToOpenAI() openai.ChatCompletionToolUnionParam {
	var funcParams openai.FunctionParameters
	paramsJSON, _ := json.Marshal(t.Parameters)
	json.Unmarshal(paramsJSON, &funcParams)

	return openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        t.Name,
		Description: openai.String(t.Description),
		Parameters:  funcParams,
	})
}

// ToJSONSchema returns the raw JSON schema describing the tool's parameters,
// the shape Anthropic's input_schema and Gemini's FunctionDeclaration both
// need after provider-specific field renaming.
func (t *ToolDeclaration) ToJSONSchema() map[string]interface{} {
	return t.Parameters
}

// Common tool parameter helpers.

func StringParam(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func NumberParam(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": description,
	}
}

func BoolParam(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": description,
	}
}

func ArrayParam(description, itemType string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items": map[string]interface{}{
			"type": itemType,
		},
	}
}

func EnumParam(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
		"enum":        values,
	}
}
