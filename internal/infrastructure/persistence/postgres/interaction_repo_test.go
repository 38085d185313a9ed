package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionSchema_ActiveAgentIsUnbounded(t *testing.T) {
	require.NotEmpty(t, interactionSchema)

	create := interactionSchema[0]
	assert.Contains(t, create, "active_agent TEXT NOT NULL")
	assert.NotContains(t, strings.ToUpper(create), "ACTIVE_AGENT VARCHAR")

	assert.Contains(t, interactionSchema, "ALTER TABLE ueba_interactions ALTER COLUMN active_agent TYPE TEXT")
}
