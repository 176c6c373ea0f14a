package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradelens/backend/internal/storage/models"
)

// exampleWith builds a training example whose average previous grade is
// exactly avg by using a single-element grade list.
func exampleWith(avg, gpa, aw, ew, final float64) models.TrainingExample {
	return models.TrainingExample{
		PreviousGrades:   []float64{avg},
		GPA:              gpa,
		AssignmentWeight: aw,
		ExamWeight:       ew,
		FinalGrade:       final,
	}
}

func TestTrainRecoversLinearRelation(t *testing.T) {
	// final = 2 + 0.5*avg + 3*gpa + 10*aw + 5*ew, evaluated on a
	// rank-sufficient set of feature rows.
	grade := func(avg, gpa, aw, ew float64) float64 {
		return 2 + 0.5*avg + 3*gpa + 10*aw + 5*ew
	}

	rows := [][4]float64{
		{80, 3.0, 0.4, 0.5},
		{90, 3.8, 0.3, 0.7},
		{70, 2.5, 0.5, 0.4},
		{85, 3.2, 0.2, 0.8},
		{60, 2.0, 0.6, 0.3},
		{95, 4.0, 0.1, 0.9},
		{75, 2.8, 0.45, 0.2},
	}

	var examples []models.TrainingExample
	for _, r := range rows {
		examples = append(examples, exampleWith(r[0], r[1], r[2], r[3], grade(r[0], r[1], r[2], r[3])))
	}

	model := Train(examples)
	require.False(t, model.LowConfidenceData)

	expected := [5]float64{2, 0.5, 3, 10, 5}
	for i, c := range expected {
		assert.InDelta(t, c, model.Coefficients[i], 1e-6, "coefficient %d", i)
	}

	v := FeatureVector{AvgPreviousGrade: 82, GPA: 3.1, AssignmentWeight: 0.35, ExamWeight: 0.6}
	assert.InDelta(t, grade(82, 3.1, 0.35, 0.6), model.Predict(v), 1e-6)
}

func TestTrainSingleExampleIsLowConfidence(t *testing.T) {
	model := Train([]models.TrainingExample{exampleWith(85, 3.5, 0.4, 0.6, 88)})

	assert.True(t, model.LowConfidenceData)

	// The degraded model still predicts without panicking.
	_ = model.Predict(FeatureVector{AvgPreviousGrade: 80, GPA: 3.0, AssignmentWeight: 0.5, ExamWeight: 0.5})
}

func TestTrainIdenticalExamplesIsRankDeficient(t *testing.T) {
	row := exampleWith(85, 3.5, 0.4, 0.6, 88)
	model := Train([]models.TrainingExample{row, row, row})

	assert.True(t, model.LowConfidenceData)
}

func TestTrainEmptySet(t *testing.T) {
	model := Train(nil)

	assert.True(t, model.LowConfidenceData)
	assert.Equal(t, 0.0, model.Predict(FeatureVector{AvgPreviousGrade: 80, GPA: 3.0}))
}
