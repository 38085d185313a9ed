package prompt

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MasterAgentTemplate(t *testing.T) {
	r := NewRegistry()

	tpl, err := r.ChatTemplate(PromptMasterAgentV1)
	require.NoError(t, err)

	msgs, err := tpl.Format(context.Background(), map[string]any{
		"transcript":    "I need a sanction letter",
		"customer_name": "Anvay Ghare",
		"credit_score":  789,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Tata Capital Master Agent")
	assert.Contains(t, msgs[0].Content, `{ "text": "...", "active_agent": "...", "ueba_log": "..." }`)
	for _, agent := range []string{"agent-sales", "agent-verify", "agent-risk", "agent-doc"} {
		assert.Contains(t, msgs[0].Content, agent)
	}

	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, `USER INPUT: "I need a sanction letter"`)
	assert.Contains(t, msgs[1].Content, "Customer: Anvay Ghare, Credit Score: 789")

	again, err := r.ChatTemplate(PromptMasterAgentV1)
	require.NoError(t, err)
	assert.Equal(t, tpl, again)
}

func TestRegistry_UnknownPrompt(t *testing.T) {
	_, err := NewRegistry().ChatTemplate(PromptID("missing_v9"))
	assert.Error(t, err)
}
