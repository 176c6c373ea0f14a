// Package extract derives typed course/student fields from a document's raw
// text by sending a fixed schema instruction plus the text to the language
// model. Malformed model output never fails the pipeline: the result carries
// the raw response and is flagged unparsed so callers can tell a genuine
// zero from a parse failure.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/llm"
	"github.com/gradelens/backend/internal/storage/models"
	"github.com/gradelens/backend/pkg/logger"
)

type SchemaKind string

const (
	SchemaCourseInfo    SchemaKind = "course_info"
	SchemaStudentRecord SchemaKind = "student_record"
)

// Completer is the slice of the LLM client the extractor needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Extractor struct {
	llm Completer
}

func New(completer Completer) *Extractor {
	return &Extractor{llm: completer}
}

const courseSchemaPrompt = `Extract and format the following information from this document into JSON:
- Course Name
- Instructor Name
- Grade Weight
- Assignment Names
- GPA (if applicable)
- Final Grade
- Due Dates
- Credit Hours

Return the data in this JSON format:
{
	"course_name": "...",
	"instructor": "...",
	"grade_weights": [{"name": "...", "weight": "..."}],
	"assignments": ["...", "..."],
	"gpa": 0.0,
	"final_grade": 0.0,
	"due_dates": [{"assignment": "...", "due_date": "..."}],
	"credit_hours": 0.0
}
Return JSON only, no extra text.`

const studentSchemaPrompt = `Extract the student's grade history from this document into JSON:
- Previous numeric grades (0-100 scale)
- GPA
- Assignment weight (fraction of the final grade)
- Exam weight (fraction of the final grade)

Return the data in this JSON format:
{
	"previous_grades": [0.0],
	"gpa": 0.0,
	"assignment_weight": 0.0,
	"exam_weight": 0.0
}
Return JSON only, no extra text.`

// CourseResult wraps either parsed course data or, when the model response
// was not the expected JSON shape, the raw response flagged unparsed.
type CourseResult struct {
	Data     models.CourseData
	Unparsed bool
	Raw      string
}

// StudentResult is the student-record counterpart of CourseResult.
type StudentResult struct {
	Data     models.StudentRecord
	Unparsed bool
	Raw      string
}

func (e *Extractor) ExtractCourse(ctx context.Context, text string) (*CourseResult, error) {
	content, err := e.complete(ctx, courseSchemaPrompt, text)
	if err != nil {
		return nil, err
	}

	var data models.CourseData
	if err := json.Unmarshal([]byte(CleanJSON(content)), &data); err != nil {
		logger.Warn("Course extraction response not parseable, degrading",
			zap.Error(err),
			zap.Int("response_length", len(content)),
		)
		return &CourseResult{Unparsed: true, Raw: content}, nil
	}

	return &CourseResult{Data: data}, nil
}

func (e *Extractor) ExtractStudent(ctx context.Context, text string) (*StudentResult, error) {
	content, err := e.complete(ctx, studentSchemaPrompt, text)
	if err != nil {
		return nil, err
	}

	var data models.StudentRecord
	if err := json.Unmarshal([]byte(CleanJSON(content)), &data); err != nil {
		logger.Warn("Student extraction response not parseable, degrading",
			zap.Error(err),
			zap.Int("response_length", len(content)),
		)
		return &StudentResult{Unparsed: true, Raw: content}, nil
	}

	return &StudentResult{Data: data}, nil
}

func (e *Extractor) complete(ctx context.Context, schemaPrompt, text string) (string, error) {
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: schemaPrompt,
		UserPrompt:   text,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstream, "structured extraction failed", err)
	}
	return resp.Content, nil
}

// CleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
