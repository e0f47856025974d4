package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundedMean(t *testing.T) {
	tests := []struct {
		name  string
		sum   int64
		count int64
		want  int
	}{
		{name: "single", sum: 4, count: 1, want: 4},
		{name: "exact", sum: 8, count: 2, want: 4},
		{name: "half rounds up", sum: 9, count: 2, want: 5},
		{name: "below half", sum: 10, count: 3, want: 3},
		{name: "above half", sum: 11, count: 3, want: 4},
		{name: "all ones", sum: 5, count: 5, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundedMean(tt.sum, tt.count)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestRoundedMeanNoReviews(t *testing.T) {
	assert.Nil(t, RoundedMean(0, 0))
}

func TestHasWorkArea(t *testing.T) {
	u := &User{WorkAreas: []string{"north", "center"}}

	assert.True(t, u.HasWorkArea("center"))
	assert.False(t, u.HasWorkArea("south"))
	assert.False(t, (&User{}).HasWorkArea("north"))
}
