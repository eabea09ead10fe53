package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowbaker/weave/pkg/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"hello"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}}`))
	}))
	defer server.Close()

	model, err := New(Config{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	text, err := model.Generate(context.Background(), ai.GenerateRequest{System: "sys", Prompt: "hi", ImageURL: "https://x/cat.png"})
	require.NoError(t, err)

	assert.Equal(t, "hello", text)
	assert.Equal(t, DefaultModel, received["model"])
	assert.EqualValues(t, DefaultMaxTokens, received["max_tokens"])
	assert.NotEmpty(t, received["system"])

	messages := received["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	assert.Len(t, content, 2)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ai.ErrMissingAPIKey)
}
