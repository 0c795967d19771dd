package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func amt(v float64) *float64 { return &v }

func TestAwardSum(t *testing.T) {
	r := ExtractionResult{Awards: []ItemizedAward{
		{Label: "rent arrears", Amount: 1200.50},
		{Label: "filing fee", Amount: 20.44},
	}}
	assert.InDelta(t, 1220.94, r.AwardSum(), 0.001)
}

func TestSumConsistent(t *testing.T) {
	tests := []struct {
		name   string
		result ExtractionResult
		want   bool
	}{
		{
			name: "matching breakdown",
			result: ExtractionResult{
				CompensationAmount: amt(1500),
				Awards:             []ItemizedAward{{Amount: 1000}, {Amount: 500}},
			},
			want: true,
		},
		{
			name: "within tolerance",
			result: ExtractionResult{
				CompensationAmount: amt(1500.80),
				Awards:             []ItemizedAward{{Amount: 1000}, {Amount: 500}},
			},
			want: true,
		},
		{
			name: "mismatch",
			result: ExtractionResult{
				CompensationAmount: amt(2500),
				Awards:             []ItemizedAward{{Amount: 1000}, {Amount: 500}},
			},
			want: false,
		},
		{
			name:   "no breakdown is trivially consistent",
			result: ExtractionResult{CompensationAmount: amt(2500)},
			want:   true,
		},
		{
			name:   "no amount is trivially consistent",
			result: ExtractionResult{Awards: []ItemizedAward{{Amount: 10}}},
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.SumConsistent(1.0))
		})
	}
}
