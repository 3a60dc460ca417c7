package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunReport(t *testing.T) {
	r := NewRunReport(KindValidate, "managed-app", true, 1500*time.Millisecond, 2)

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, "succeeded", r.FinalStatus)
	assert.True(t, r.Succeeded())
	assert.Equal(t, 2, r.Retries)
	assert.InDelta(t, 1.5, r.DurationSeconds(), 0.001)

	// Distinct runs get distinct IDs
	other := NewRunReport(KindValidate, "managed-app", true, 0, 0)
	assert.NotEqual(t, r.RunID, other.RunID)
}

func TestRunReport_JSONDurationInSeconds(t *testing.T) {
	r := NewRunReport(KindPackage, "storage-offer", false, 250*time.Millisecond, 0)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.InDelta(t, 0.25, decoded["duration_seconds"], 0.001)
	assert.Equal(t, "failed", decoded["final_status"])
}
