package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolArgsSchema(t *testing.T) {
	schema := ToolArgsSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"prompt"}, schema["required"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	prompt, ok := properties["prompt"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", prompt["type"])
	assert.NotEmpty(t, prompt["description"])
}

func TestParseToolArgs(t *testing.T) {
	prompt, err := ParseToolArgs([]byte(`{"prompt": "hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", prompt)

	_, err = ParseToolArgs([]byte(`not json`))
	assert.Error(t, err)
}

func TestSchemaForOptionalFields(t *testing.T) {
	type params struct {
		Name    string   `json:"name"`
		Note    string   `json:"note,omitempty"`
		Count   int      `json:"count"`
		Tags    []string `json:"tags,omitempty"`
		Skipped string   `json:"-"`
	}

	schema := SchemaFor(params{})
	properties := schema["properties"].(map[string]any)

	assert.Len(t, properties, 4)
	assert.NotContains(t, properties, "Skipped")
	assert.Equal(t, "integer", properties["count"].(map[string]any)["type"])
	assert.Equal(t, "array", properties["tags"].(map[string]any)["type"])
	assert.ElementsMatch(t, []string{"name", "count"}, schema["required"])
}
