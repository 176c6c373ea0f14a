package predict

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gradelens/backend/internal/extract"
	"github.com/gradelens/backend/internal/storage/models"
)

const advisorSystemPrompt = "You are a concise academic advisor."

// BuildPrompt renders the course data into the fixed prediction prompt.
// The template is deterministic: identical input always yields an identical
// prompt, which keeps prediction requests reproducible.
func BuildPrompt(course models.CourseData) string {
	var lines []string

	lines = append(lines, "Course Name: "+course.CourseName)
	lines = append(lines, "Instructor: "+course.Instructor)

	lines = append(lines, "Grade Weights:")
	for _, gw := range course.GradeWeights {
		lines = append(lines, "  - "+gw.Name+": "+gw.Weight)
	}

	lines = append(lines, "Assignments: "+strings.Join(course.Assignments, ", "))

	lines = append(lines, "GPA: "+formatNumber(course.GPA))
	lines = append(lines, "Current/Previous Final Grade: "+formatNumber(course.FinalGrade))
	lines = append(lines, "Credit Hours: "+formatNumber(course.CreditHours))

	lines = append(lines, "Due Dates:")
	for _, dd := range course.DueDates {
		lines = append(lines, "  - "+dd.Assignment+" due on "+dd.DueDate)
	}

	lines = append(lines,
		"Based on these details, predict the student's final grade. "+
			"Output exactly in JSON format with two keys: 'grade' (a numeric value) "+
			"and 'reasoning' (a short explanation). Do not include extra text.")

	return strings.Join(lines, "\n")
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type promptAnswer struct {
	Grade     float64 `json:"grade"`
	Reasoning string  `json:"reasoning"`
}

// parseAdvisorResponse parses the single JSON object the advisor prompt
// demands. A response that is not that shape degrades to grade 0 with the
// raw text as reasoning, flagged unparsed.
func parseAdvisorResponse(content string) (grade float64, reasoning string, unparsed bool) {
	var answer promptAnswer
	if err := json.Unmarshal([]byte(extract.CleanJSON(content)), &answer); err != nil {
		return 0, content, true
	}
	return answer.Grade, answer.Reasoning, false
}
