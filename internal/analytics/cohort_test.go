package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestEstimateCohortLoss(t *testing.T) {
	tests := []struct {
		name       string
		cohortSize int
		periods    []int
		explicit   *int
		expected   CohortLoss
	}{
		{
			name:       "explicit figure wins",
			cohortSize: 100,
			periods:    []int{90, 70},
			explicit:   intPtr(12),
			expected:   CohortLoss{Lost: 12},
		},
		{
			name:       "inferred from last period",
			cohortSize: 100,
			periods:    []int{90, 70},
			expected:   CohortLoss{Lost: 30, Approximate: true},
		},
		{
			name:       "last period above cohort size clamps to zero",
			cohortSize: 50,
			periods:    []int{60},
			expected:   CohortLoss{Lost: 0, Approximate: true},
		},
		{
			name:       "no periods means nothing observed lost",
			cohortSize: 40,
			expected:   CohortLoss{Lost: 0, Approximate: true},
		},
		{
			name:       "empty cohort",
			cohortSize: 0,
			periods:    []int{5},
			expected:   CohortLoss{Approximate: true},
		},
		{
			name:       "negative explicit figure clamps to zero",
			cohortSize: 10,
			explicit:   intPtr(-3),
			expected:   CohortLoss{Lost: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EstimateCohortLoss(tt.cohortSize, tt.periods, tt.explicit))
		})
	}
}

func TestRetentionRate(t *testing.T) {
	assert.InDelta(t, 0.7, RetentionRate(100, []int{90, 70}), 0.0001)
	assert.Equal(t, 0.0, RetentionRate(0, []int{5}))
	assert.Equal(t, 0.0, RetentionRate(10, nil))
	assert.Equal(t, 1.0, RetentionRate(10, []int{12}))
}
