package services

import (
	"testing"

	"topminton/models"

	"github.com/stretchr/testify/assert"
)

func TestGradeAssessment(t *testing.T) {
	tests := []struct {
		name        string
		earned      int
		total       int
		trickMisses int
		want        int
	}{
		{"perfect", 10, 10, 0, 100},
		{"half", 5, 10, 0, 50},
		{"zero", 0, 10, 0, 0},
		{"trick miss deducts ten", 8, 10, 1, 70},
		{"two trick misses", 10, 10, 2, 80},
		{"penalty floors at zero", 1, 10, 3, 0},
		{"no questions", 0, 0, 0, 0},
		{"weighted", 7, 9, 0, 77}, // integer division
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GradeAssessment(tt.earned, tt.total, tt.trickMisses))
		})
	}
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, models.TierBeginner},
		{29, models.TierBeginner},
		{30, models.TierNovice},
		{49, models.TierNovice},
		{50, models.TierIntermediate},
		{69, models.TierIntermediate},
		{70, models.TierAdvanced},
		{84, models.TierAdvanced},
		{85, models.TierElite},
		{100, models.TierElite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierForScore(tt.score), "score %d", tt.score)
	}
}
