package models

import "time"

type DocumentType string

const (
	DocTypeSyllabus   DocumentType = "syllabus"
	DocTypeTranscript DocumentType = "transcript"
	DocTypeGrades     DocumentType = "grades"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeSyllabus, DocTypeTranscript, DocTypeGrades:
		return true
	}
	return false
}

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusExtracting DocumentStatus = "extracting"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is one uploaded file plus its extraction state, keyed by
// (OwnerID, Type). Text is set only while Status is processed.
type Document struct {
	ID              string
	OwnerID         string
	Type            DocumentType
	FileRef         string
	Status          DocumentStatus
	Text            string
	StructuredJSON  string
	FailureCause    string
	LastExtractedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type GradeWeight struct {
	Name   string `json:"name"`
	Weight string `json:"weight"`
}

type DueDate struct {
	Assignment string `json:"assignment"`
	DueDate    string `json:"due_date"`
}

// CourseData is the structured form of a syllabus/transcript document.
// Field names mirror the extraction schema the LLM is instructed to emit.
type CourseData struct {
	CourseName   string        `json:"course_name"`
	Instructor   string        `json:"instructor"`
	GradeWeights []GradeWeight `json:"grade_weights"`
	Assignments  []string      `json:"assignments"`
	GPA          float64       `json:"gpa"`
	FinalGrade   float64       `json:"final_grade"`
	DueDates     []DueDate     `json:"due_dates"`
	CreditHours  float64       `json:"credit_hours"`
}

// StudentRecord holds the numeric fields the regression model consumes.
type StudentRecord struct {
	PreviousGrades   []float64 `json:"previous_grades"`
	GPA              *float64  `json:"gpa"`
	AssignmentWeight *float64  `json:"assignment_weight"`
	ExamWeight       *float64  `json:"exam_weight"`
}

// TrainingExample is one labeled row of the process-wide training set.
// Ids are issued by the store and the set is append-only.
type TrainingExample struct {
	ID               int       `json:"id"`
	PreviousGrades   []float64 `json:"previous_grades"`
	GPA              float64   `json:"gpa"`
	AssignmentWeight float64   `json:"assignment_weight"`
	ExamWeight       float64   `json:"exam_weight"`
	FinalGrade       float64   `json:"final_grade"`
}

const (
	ModelChatGPT          = "chatgpt"
	ModelLinearRegression = "linear_regression"
)

// Prediction is the immutable output of a single strategy. Unparsed marks
// the degraded fallback produced when the LLM response was not valid JSON,
// so a genuine zero grade stays distinguishable from a parse failure.
type Prediction struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Grade     float64   `json:"grade"`
	Reasoning string    `json:"reasoning"`
	Model     string    `json:"model"`
	Unparsed  bool      `json:"unparsed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// CombinedPrediction reconciles one prompt prediction and one regression
// prediction that already exist.
type CombinedPrediction struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"-"`
	Grade        float64         `json:"grade"`
	ChatGPTGrade float64         `json:"chatgpt_grade"`
	MLGrade      float64         `json:"ml_grade"`
	Confidence   ConfidenceLevel `json:"confidence"`
	Reasoning    string          `json:"reasoning"`
	CreatedAt    time.Time       `json:"created_at"`
}
