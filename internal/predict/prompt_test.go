package predict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gradelens/backend/internal/storage/models"
)

func promptFixture() models.CourseData {
	return models.CourseData{
		CourseName: "Operating Systems",
		Instructor: "Dr. Chen",
		GradeWeights: []models.GradeWeight{
			{Name: "Homework", Weight: "30%"},
			{Name: "Exams", Weight: "70%"},
		},
		Assignments: []string{"HW1", "HW2"},
		GPA:         3.5,
		FinalGrade:  88,
		DueDates: []models.DueDate{
			{Assignment: "HW1", DueDate: "2025-02-01"},
		},
		CreditHours: 3,
	}
}

func TestBuildPrompt(t *testing.T) {
	expected := "Course Name: Operating Systems\n" +
		"Instructor: Dr. Chen\n" +
		"Grade Weights:\n" +
		"  - Homework: 30%\n" +
		"  - Exams: 70%\n" +
		"Assignments: HW1, HW2\n" +
		"GPA: 3.5\n" +
		"Current/Previous Final Grade: 88\n" +
		"Credit Hours: 3\n" +
		"Due Dates:\n" +
		"  - HW1 due on 2025-02-01\n" +
		"Based on these details, predict the student's final grade. " +
		"Output exactly in JSON format with two keys: 'grade' (a numeric value) " +
		"and 'reasoning' (a short explanation). Do not include extra text."

	assert.Equal(t, expected, BuildPrompt(promptFixture()))
}

func TestBuildPromptDeterministic(t *testing.T) {
	course := promptFixture()
	assert.Equal(t, BuildPrompt(course), BuildPrompt(course))
}

func TestParseAdvisorResponse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		grade, reasoning, unparsed := parseAdvisorResponse(`{"grade": 87.5, "reasoning": "solid homework scores"}`)
		assert.False(t, unparsed)
		assert.Equal(t, 87.5, grade)
		assert.Equal(t, "solid homework scores", reasoning)
	})

	t.Run("fenced json", func(t *testing.T) {
		grade, reasoning, unparsed := parseAdvisorResponse("```json\n{\"grade\": 91, \"reasoning\": \"consistent performance\"}\n```")
		assert.False(t, unparsed)
		assert.Equal(t, 91.0, grade)
		assert.Equal(t, "consistent performance", reasoning)
	})

	t.Run("not json degrades", func(t *testing.T) {
		raw := "The student will probably get an A."
		grade, reasoning, unparsed := parseAdvisorResponse(raw)
		assert.True(t, unparsed)
		assert.Equal(t, 0.0, grade)
		assert.Equal(t, raw, reasoning)
	})
}
