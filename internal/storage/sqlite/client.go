package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/storage/models"
	"github.com/gradelens/backend/pkg/logger"
)

// Client persists the hierarchical record layout on SQLite:
// users/{owner}/documents/{type}, users/{owner}/predictions/{id},
// users/{owner}/ml_predictions/{id}, users/{owner}/combined_predictions/{id}
// and the process-wide training_data/students set.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		owner_id TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		id TEXT NOT NULL,
		file_ref TEXT NOT NULL,
		status TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		structured_json TEXT NOT NULL DEFAULT '',
		failure_cause TEXT NOT NULL DEFAULT '',
		last_extracted_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (owner_id, doc_type)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		grade REAL NOT NULL,
		reasoning TEXT NOT NULL,
		model TEXT NOT NULL,
		unparsed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_owner_created ON predictions(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS ml_predictions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		grade REAL NOT NULL,
		reasoning TEXT NOT NULL,
		model TEXT NOT NULL,
		unparsed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ml_predictions_owner_created ON ml_predictions(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS combined_predictions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		grade REAL NOT NULL,
		chatgpt_grade REAL NOT NULL,
		ml_grade REAL NOT NULL,
		confidence TEXT NOT NULL,
		reasoning TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_combined_owner_created ON combined_predictions(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS training_examples (
		id INTEGER PRIMARY KEY,
		previous_grades TEXT NOT NULL,
		gpa REAL NOT NULL,
		assignment_weight REAL NOT NULL,
		exam_weight REAL NOT NULL,
		final_grade REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// PutDocument creates or fully overwrites the record for (owner, type).
func (c *Client) PutDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (owner_id, doc_type, id, file_ref, status, text, structured_json,
			failure_cause, last_extracted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, doc_type) DO UPDATE SET
			id = excluded.id,
			file_ref = excluded.file_ref,
			status = excluded.status,
			text = excluded.text,
			structured_json = excluded.structured_json,
			failure_cause = excluded.failure_cause,
			last_extracted_at = excluded.last_extracted_at,
			updated_at = excluded.updated_at
	`

	var lastExtracted any
	if doc.LastExtractedAt != nil {
		lastExtracted = doc.LastExtractedAt.Unix()
	}

	_, err := c.db.Exec(
		query,
		doc.OwnerID,
		string(doc.Type),
		doc.ID,
		doc.FileRef,
		string(doc.Status),
		doc.Text,
		doc.StructuredJSON,
		doc.FailureCause,
		lastExtracted,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}

	logger.Debug("Document stored",
		zap.String("owner_id", doc.OwnerID),
		zap.String("doc_type", string(doc.Type)),
		zap.String("status", string(doc.Status)),
	)
	return nil
}

// GetDocument returns (nil, nil) when no record exists for (owner, type).
func (c *Client) GetDocument(ownerID string, docType models.DocumentType) (*models.Document, error) {
	query := `
		SELECT owner_id, doc_type, id, file_ref, status, text, structured_json,
			failure_cause, last_extracted_at, created_at, updated_at
		FROM documents WHERE owner_id = ? AND doc_type = ?
	`

	var doc models.Document
	var typ, status string
	var lastExtracted sql.NullInt64
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, ownerID, string(docType)).Scan(
		&doc.OwnerID,
		&typ,
		&doc.ID,
		&doc.FileRef,
		&status,
		&doc.Text,
		&doc.StructuredJSON,
		&doc.FailureCause,
		&lastExtracted,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Type = models.DocumentType(typ)
	doc.Status = models.DocumentStatus(status)
	if lastExtracted.Valid {
		t := time.Unix(lastExtracted.Int64, 0)
		doc.LastExtractedAt = &t
	}
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}

func (c *Client) InsertPromptPrediction(p *models.Prediction) error {
	return c.insertPrediction("predictions", p)
}

func (c *Client) InsertRegressionPrediction(p *models.Prediction) error {
	return c.insertPrediction("ml_predictions", p)
}

func (c *Client) insertPrediction(table string, p *models.Prediction) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, grade, reasoning, model, unparsed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, table)

	unparsed := 0
	if p.Unparsed {
		unparsed = 1
	}

	_, err := c.db.Exec(query, p.ID, p.OwnerID, p.Grade, p.Reasoning, p.Model, unparsed, p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	logger.Info("Prediction stored",
		zap.String("prediction_id", p.ID),
		zap.String("model", p.Model),
		zap.Float64("grade", p.Grade),
	)
	return nil
}

func (c *Client) GetPromptPrediction(ownerID, id string) (*models.Prediction, error) {
	return c.getPrediction("predictions", ownerID, id)
}

func (c *Client) GetRegressionPrediction(ownerID, id string) (*models.Prediction, error) {
	return c.getPrediction("ml_predictions", ownerID, id)
}

func (c *Client) getPrediction(table, ownerID, id string) (*models.Prediction, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, grade, reasoning, model, unparsed, created_at
		FROM %s WHERE owner_id = ? AND id = ?
	`, table)

	return c.scanPrediction(c.db.QueryRow(query, ownerID, id))
}

func (c *Client) LatestPromptPrediction(ownerID string) (*models.Prediction, error) {
	return c.latestPrediction("predictions", ownerID)
}

func (c *Client) LatestRegressionPrediction(ownerID string) (*models.Prediction, error) {
	return c.latestPrediction("ml_predictions", ownerID)
}

func (c *Client) latestPrediction(table, ownerID string) (*models.Prediction, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, grade, reasoning, model, unparsed, created_at
		FROM %s WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, table)

	return c.scanPrediction(c.db.QueryRow(query, ownerID))
}

func (c *Client) scanPrediction(row *sql.Row) (*models.Prediction, error) {
	var p models.Prediction
	var unparsed int
	var createdAt int64

	err := row.Scan(&p.ID, &p.OwnerID, &p.Grade, &p.Reasoning, &p.Model, &unparsed, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan prediction: %w", err)
	}

	p.Unparsed = unparsed != 0
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

func (c *Client) InsertCombinedPrediction(p *models.CombinedPrediction) error {
	query := `
		INSERT INTO combined_predictions (id, owner_id, grade, chatgpt_grade, ml_grade, confidence, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		p.ID,
		p.OwnerID,
		p.Grade,
		p.ChatGPTGrade,
		p.MLGrade,
		string(p.Confidence),
		p.Reasoning,
		p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert combined prediction: %w", err)
	}

	logger.Info("Combined prediction stored",
		zap.String("prediction_id", p.ID),
		zap.String("confidence", string(p.Confidence)),
	)
	return nil
}

func (c *Client) LatestCombinedPrediction(ownerID string) (*models.CombinedPrediction, error) {
	query := `
		SELECT id, owner_id, grade, chatgpt_grade, ml_grade, confidence, reasoning, created_at
		FROM combined_predictions WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`

	var p models.CombinedPrediction
	var confidence string
	var createdAt int64

	err := c.db.QueryRow(query, ownerID).Scan(
		&p.ID,
		&p.OwnerID,
		&p.Grade,
		&p.ChatGPTGrade,
		&p.MLGrade,
		&confidence,
		&p.Reasoning,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get combined prediction: %w", err)
	}

	p.Confidence = models.ConfidenceLevel(confidence)
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

func (c *Client) ListTrainingExamples() ([]models.TrainingExample, error) {
	query := `
		SELECT id, previous_grades, gpa, assignment_weight, exam_weight, final_grade
		FROM training_examples ORDER BY id
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list training examples: %w", err)
	}
	defer rows.Close()

	var examples []models.TrainingExample
	for rows.Next() {
		var ex models.TrainingExample
		var gradesJSON string

		err := rows.Scan(&ex.ID, &gradesJSON, &ex.GPA, &ex.AssignmentWeight, &ex.ExamWeight, &ex.FinalGrade)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(gradesJSON), &ex.PreviousGrades); err != nil {
			return nil, fmt.Errorf("failed to decode previous grades: %w", err)
		}
		examples = append(examples, ex)
	}

	return examples, rows.Err()
}

// AppendTrainingExample issues the next id inside a single transaction, so
// concurrent writers cannot observe the same max and duplicate an id.
func (c *Client) AppendTrainingExample(ex models.TrainingExample) (int, error) {
	gradesJSON, err := json.Marshal(ex.PreviousGrades)
	if err != nil {
		return 0, fmt.Errorf("failed to encode previous grades: %w", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextID int
	err = tx.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM training_examples`).Scan(&nextID)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate training example id: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO training_examples (id, previous_grades, gpa, assignment_weight, exam_weight, final_grade, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nextID,
		string(gradesJSON),
		ex.GPA,
		ex.AssignmentWeight,
		ex.ExamWeight,
		ex.FinalGrade,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert training example: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit training example: %w", err)
	}

	logger.Info("Training example added", zap.Int("example_id", nextID))
	return nextID, nil
}

// SeedTrainingExamples inserts the given rows only when the set is empty.
func (c *Client) SeedTrainingExamples(examples []models.TrainingExample) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM training_examples`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count training examples: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, ex := range examples {
		gradesJSON, err := json.Marshal(ex.PreviousGrades)
		if err != nil {
			return fmt.Errorf("failed to encode previous grades: %w", err)
		}

		_, err = tx.Exec(
			`INSERT INTO training_examples (id, previous_grades, gpa, assignment_weight, exam_weight, final_grade, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ex.ID,
			string(gradesJSON),
			ex.GPA,
			ex.AssignmentWeight,
			ex.ExamWeight,
			ex.FinalGrade,
			time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to seed training example: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed data: %w", err)
	}

	logger.Info("Training set seeded", zap.Int("examples", len(examples)))
	return nil
}
