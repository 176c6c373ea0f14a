package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gradelens/backend/internal/storage/models"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name         string
		promptGrade  float64
		mlGrade      float64
		wantGrade    float64
		wantConfid   models.ConfidenceLevel
	}{
		{"close agreement", 90, 92, 91, models.ConfidenceHigh},
		{"moderate disagreement", 90, 82, 86, models.ConfidenceMedium},
		{"strong disagreement", 90, 70, 80, models.ConfidenceLow},
		{"difference exactly five", 90, 85, 87.5, models.ConfidenceMedium},
		{"difference exactly fifteen", 90, 75, 82.5, models.ConfidenceMedium},
		{"order does not matter", 70, 90, 80, models.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := &models.Prediction{Grade: tt.promptGrade, Reasoning: "strong assignment record", Model: models.ModelChatGPT}
			regression := &models.Prediction{Grade: tt.mlGrade, Model: models.ModelLinearRegression}

			combined := Combine(prompt, regression)

			assert.InDelta(t, tt.wantGrade, combined.Grade, 1e-9)
			assert.Equal(t, tt.wantConfid, combined.Confidence)
			assert.Equal(t, tt.promptGrade, combined.ChatGPTGrade)
			assert.Equal(t, tt.mlGrade, combined.MLGrade)
			assert.Equal(t, "strong assignment record", combined.Reasoning)
		})
	}
}
