package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/storage/models"
)

func floatPtr(f float64) *float64 { return &f }

func TestBuildFeatures(t *testing.T) {
	record := models.StudentRecord{
		PreviousGrades:   []float64{85, 90, 92},
		GPA:              floatPtr(3.6),
		AssignmentWeight: floatPtr(0.3),
		ExamWeight:       floatPtr(0.7),
	}

	features, err := BuildFeatures(record)
	require.NoError(t, err)

	assert.InDelta(t, 89.0, features.AvgPreviousGrade, 1e-9)
	assert.Equal(t, 3.6, features.GPA)
	assert.Equal(t, 0.3, features.AssignmentWeight)
	assert.Equal(t, 0.7, features.ExamWeight)
}

func TestBuildFeaturesSingleGrade(t *testing.T) {
	record := models.StudentRecord{
		PreviousGrades:   []float64{77},
		GPA:              floatPtr(3.0),
		AssignmentWeight: floatPtr(0.5),
		ExamWeight:       floatPtr(0.5),
	}

	features, err := BuildFeatures(record)
	require.NoError(t, err)
	assert.Equal(t, 77.0, features.AvgPreviousGrade)
}

func TestBuildFeaturesMissingFields(t *testing.T) {
	valid := models.StudentRecord{
		PreviousGrades:   []float64{80},
		GPA:              floatPtr(3.0),
		AssignmentWeight: floatPtr(0.4),
		ExamWeight:       floatPtr(0.6),
	}

	tests := []struct {
		name   string
		mutate func(r *models.StudentRecord)
		field  string
	}{
		{"empty previous grades", func(r *models.StudentRecord) { r.PreviousGrades = nil }, "previous_grades"},
		{"missing gpa", func(r *models.StudentRecord) { r.GPA = nil }, "gpa"},
		{"missing assignment weight", func(r *models.StudentRecord) { r.AssignmentWeight = nil }, "assignment_weight"},
		{"missing exam weight", func(r *models.StudentRecord) { r.ExamWeight = nil }, "exam_weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := valid
			tt.mutate(&record)

			_, err := BuildFeatures(record)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}
