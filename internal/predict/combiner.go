package predict

import (
	"math"

	"github.com/gradelens/backend/internal/storage/models"
)

// Agreement thresholds between the two strategies, in grade points.
// Exclusive on both sides: a difference of exactly 5 or exactly 15 is
// medium confidence.
const (
	highConfidenceDiff = 5
	lowConfidenceDiff  = 15
)

// Combine merges one advisor prediction and one regression prediction into
// a single result. The grade is the plain average of the two; confidence is
// a fixed heuristic on their disagreement, not a calibrated estimator. The
// reasoning is taken verbatim from the advisor prediction, since the
// regression model carries no natural-language rationale.
func Combine(prompt, regression *models.Prediction) models.CombinedPrediction {
	diff := math.Abs(prompt.Grade - regression.Grade)

	confidence := models.ConfidenceMedium
	if diff < highConfidenceDiff {
		confidence = models.ConfidenceHigh
	} else if diff > lowConfidenceDiff {
		confidence = models.ConfidenceLow
	}

	return models.CombinedPrediction{
		Grade:        (prompt.Grade + regression.Grade) / 2,
		ChatGPTGrade: prompt.Grade,
		MLGrade:      regression.Grade,
		Confidence:   confidence,
		Reasoning:    prompt.Reasoning,
	}
}
