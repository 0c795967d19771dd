package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaseKey(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"plain reference", "DR0100", "DR0100"},
		{"part suffix stripped", "DR0100-1", "DR0100"},
		{"two digit part suffix", "DR0100-12", "DR0100"},
		{"first token only", "DR0100 Smith v Jones", "DR0100"},
		{"spaced part suffix", "DR0100-2 (amended)", "DR0100"},
		{"long numeric tail kept", "CIV-2020-004", "CIV-2020-004"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CaseKey(tt.ref))
		})
	}
}

func TestDedupKey_SameCaseAcrossParts(t *testing.T) {
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	a := &CaseRecord{Reference: "DR0100-1", Date: date}
	b := &CaseRecord{Reference: "DR0100-2", Date: date}
	c := &CaseRecord{Reference: "DR0100-1", Date: date.AddDate(0, 0, 1)}

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())
}

func TestProcessed(t *testing.T) {
	var c CaseRecord
	assert.False(t, c.Processed())

	now := time.Now()
	c.AIProcessedAt = &now
	assert.True(t, c.Processed())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}
