package predict

import (
	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/storage/models"
)

// FeatureVector is the fixed numeric encoding consumed by the regression
// model: (avg_previous_grade, gpa, assignment_weight, exam_weight).
type FeatureVector struct {
	AvgPreviousGrade float64
	GPA              float64
	AssignmentWeight float64
	ExamWeight       float64
}

func (v FeatureVector) Values() [4]float64 {
	return [4]float64{v.AvgPreviousGrade, v.GPA, v.AssignmentWeight, v.ExamWeight}
}

// BuildFeatures turns a student record into a feature vector. It is pure and
// used identically for training rows and inference input. An empty grade
// list is rejected here (the mean would be undefined), as is any missing
// numeric field.
func BuildFeatures(record models.StudentRecord) (FeatureVector, error) {
	if len(record.PreviousGrades) == 0 {
		return FeatureVector{}, apperr.MissingField("previous_grades")
	}
	if record.GPA == nil {
		return FeatureVector{}, apperr.MissingField("gpa")
	}
	if record.AssignmentWeight == nil {
		return FeatureVector{}, apperr.MissingField("assignment_weight")
	}
	if record.ExamWeight == nil {
		return FeatureVector{}, apperr.MissingField("exam_weight")
	}

	sum := 0.0
	for _, g := range record.PreviousGrades {
		sum += g
	}

	return FeatureVector{
		AvgPreviousGrade: sum / float64(len(record.PreviousGrades)),
		GPA:              *record.GPA,
		AssignmentWeight: *record.AssignmentWeight,
		ExamWeight:       *record.ExamWeight,
	}, nil
}

func exampleFeatures(ex models.TrainingExample) FeatureVector {
	sum := 0.0
	for _, g := range ex.PreviousGrades {
		sum += g
	}
	avg := 0.0
	if len(ex.PreviousGrades) > 0 {
		avg = sum / float64(len(ex.PreviousGrades))
	}

	return FeatureVector{
		AvgPreviousGrade: avg,
		GPA:              ex.GPA,
		AssignmentWeight: ex.AssignmentWeight,
		ExamWeight:       ex.ExamWeight,
	}
}
