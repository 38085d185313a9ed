package messaging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore-agent-api/internal/domain/entity"
)

func TestBackoffConfig_CalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(8))
}

func TestMessage_RoundTripThroughStreamValues(t *testing.T) {
	in := &entity.Interaction{
		ID:          "0b7a2a4e-5b8c-4a0e-9d7f-1f3b2b0c9a11",
		RequestID:   "req-1",
		Modalities:  []string{"text"},
		ActiveAgent: "agent-risk",
		Calls:       entity.CallStatuses{entity.IntegrationGeneration: entity.CallSuccess},
	}
	msg, err := NewMessage(in.ID, TypeInteraction, in.RequestID, in)
	require.NoError(t, err)
	msg.SetMetadata("trace_id", "abc")

	data, err := jsonString(msg)
	require.NoError(t, err)

	decoded, err := decodeXMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"data": data}})
	require.NoError(t, err)
	assert.Equal(t, TypeInteraction, decoded.Type)
	assert.Equal(t, "abc", decoded.GetMetadata("trace_id"))

	var out entity.Interaction
	require.NoError(t, decoded.UnmarshalPayload(&out))
	assert.Equal(t, "agent-risk", out.ActiveAgent)
	assert.Equal(t, entity.CallSuccess, out.Calls.Get(entity.IntegrationGeneration))
}

func TestDecodeXMessage_Invalid(t *testing.T) {
	_, err := decodeXMessage(redis.XMessage{Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = decodeXMessage(redis.XMessage{Values: map[string]interface{}{"data": "{"}})
	assert.Error(t, err)
}

func TestIsBusyGroup(t *testing.T) {
	assert.True(t, isBusyGroup(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroup(errors.New("ERR no such key")))
	assert.False(t, isBusyGroup(nil))
}

func TestStream_DLQStream(t *testing.T) {
	assert.Equal(t, "dlq:stream:ueba:interactions", StreamUEBAInteractions.DLQStream())
}

func jsonString(m *Message) (string, error) {
	b, err := json.Marshal(m)
	return string(b), err
}
