// Package lifecycle owns the per-document state machine:
//
//	uploaded → extracting → processed
//	extracting → failed → extracting (retry)
//	processed → extracting (re-extraction)
//
// No state is terminal. All document reads and writes go through the
// Manager; nothing else mutates document records.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/extract"
	"github.com/gradelens/backend/internal/metrics"
	"github.com/gradelens/backend/internal/storage/models"
	"github.com/gradelens/backend/pkg/logger"
)

type Store interface {
	PutDocument(doc *models.Document) error
	GetDocument(ownerID string, docType models.DocumentType) (*models.Document, error)
}

// TextExtractor is the OCR collaborator boundary.
type TextExtractor interface {
	Extract(ctx context.Context, fileRef string) (string, error)
}

// StructuredExtractor derives typed fields from extracted text.
type StructuredExtractor interface {
	ExtractCourse(ctx context.Context, text string) (*extract.CourseResult, error)
	ExtractStudent(ctx context.Context, text string) (*extract.StudentResult, error)
}

type Manager struct {
	store     Store
	ocr       TextExtractor
	extractor StructuredExtractor
}

func NewManager(store Store, ocr TextExtractor, extractor StructuredExtractor) *Manager {
	return &Manager{
		store:     store,
		ocr:       ocr,
		extractor: extractor,
	}
}

// RecordUpload creates or overwrites the record for (owner, type). A second
// upload for the same type replaces the prior record entirely, including
// any previously extracted text.
func (m *Manager) RecordUpload(ctx context.Context, ownerID string, docType models.DocumentType, fileRef string) (*models.Document, error) {
	if !docType.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "invalid document type: %s", docType)
	}

	now := time.Now()
	doc := &models.Document{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Type:      docType,
		FileRef:   fileRef,
		Status:    models.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.PutDocument(doc); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to record upload", err)
	}

	logger.Info("Document upload recorded",
		zap.String("owner_id", ownerID),
		zap.String("doc_type", string(docType)),
		zap.String("file_ref", fileRef),
	)
	metrics.DocumentsUploaded.WithLabelValues(string(docType)).Inc()

	return doc, nil
}

// Get loads the record for (owner, type) or fails with NotFound.
func (m *Manager) Get(ctx context.Context, ownerID string, docType models.DocumentType) (*models.Document, error) {
	doc, err := m.store.GetDocument(ownerID, docType)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load document", err)
	}
	if doc == nil {
		return nil, apperr.New(apperr.KindNotFound, "document not found")
	}
	return doc, nil
}

// BeginExtraction transitions the record to extracting. Legal from any
// existing state, which is what makes failed records retryable and
// processed records re-extractable.
func (m *Manager) BeginExtraction(ctx context.Context, ownerID string, docType models.DocumentType) (*models.Document, error) {
	doc, err := m.Get(ctx, ownerID, docType)
	if err != nil {
		return nil, err
	}

	doc.Status = models.StatusExtracting
	doc.UpdatedAt = time.Now()

	if err := m.store.PutDocument(doc); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update document", err)
	}
	return doc, nil
}

// CompleteExtraction overwrites any prior text; extraction is not additive.
func (m *Manager) CompleteExtraction(ctx context.Context, ownerID string, docType models.DocumentType, text string) (*models.Document, error) {
	doc, err := m.Get(ctx, ownerID, docType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc.Text = text
	doc.Status = models.StatusProcessed
	doc.FailureCause = ""
	doc.LastExtractedAt = &now
	doc.UpdatedAt = now

	if err := m.store.PutDocument(doc); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update document", err)
	}

	logger.Info("Document extraction completed",
		zap.String("owner_id", ownerID),
		zap.String("doc_type", string(docType)),
		zap.Int("chars", len(text)),
	)
	return doc, nil
}

// FailExtraction records the cause and leaves any previously extracted text
// untouched, so a retry loop never loses the last good result.
func (m *Manager) FailExtraction(ctx context.Context, ownerID string, docType models.DocumentType, cause error) (*models.Document, error) {
	doc, err := m.Get(ctx, ownerID, docType)
	if err != nil {
		return nil, err
	}

	doc.Status = models.StatusFailed
	doc.FailureCause = cause.Error()
	doc.UpdatedAt = time.Now()

	if err := m.store.PutDocument(doc); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update document", err)
	}

	logger.Warn("Document extraction failed",
		zap.String("owner_id", ownerID),
		zap.String("doc_type", string(docType)),
		zap.Error(cause),
	)
	return doc, nil
}

type structuredEnvelope struct {
	Schema   string      `json:"schema"`
	Data     interface{} `json:"data,omitempty"`
	Unparsed bool        `json:"unparsed,omitempty"`
	Raw      string      `json:"raw,omitempty"`
}

// ExtractText runs the full extraction flow for one document: begin, call
// the OCR collaborator, record the outcome, then derive structured fields
// from the fresh text. Structured derivation is best-effort; a degraded or
// failed derivation never undoes a successful text extraction. The whole
// flow is idempotent: re-running it with identical collaborator output
// leaves the stored text byte-identical.
func (m *Manager) ExtractText(ctx context.Context, ownerID string, docType models.DocumentType) (*models.Document, error) {
	doc, err := m.BeginExtraction(ctx, ownerID, docType)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := m.ocr.Extract(ctx, doc.FileRef)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues("failed").Inc()
		if _, failErr := m.FailExtraction(ctx, ownerID, docType, err); failErr != nil {
			logger.Error("Failed to record extraction failure", zap.Error(failErr))
		}
		return nil, err
	}

	doc, err = m.CompleteExtraction(ctx, ownerID, docType, text)
	if err != nil {
		return nil, err
	}
	metrics.ExtractionsTotal.WithLabelValues("success").Inc()

	if m.extractor != nil {
		if err := m.deriveStructured(ctx, doc); err != nil {
			logger.Warn("Structured derivation failed",
				zap.String("owner_id", ownerID),
				zap.String("doc_type", string(docType)),
				zap.Error(err),
			)
		}
	}

	return doc, nil
}

// deriveStructured supersedes (never edits) any prior structured data by
// writing a fresh envelope from the current text.
func (m *Manager) deriveStructured(ctx context.Context, doc *models.Document) error {
	var envelope structuredEnvelope

	switch doc.Type {
	case models.DocTypeSyllabus:
		result, err := m.extractor.ExtractCourse(ctx, doc.Text)
		if err != nil {
			return err
		}
		envelope = structuredEnvelope{Schema: string(extract.SchemaCourseInfo), Unparsed: result.Unparsed}
		if result.Unparsed {
			envelope.Raw = result.Raw
		} else {
			envelope.Data = result.Data
		}
	default:
		result, err := m.extractor.ExtractStudent(ctx, doc.Text)
		if err != nil {
			return err
		}
		envelope = structuredEnvelope{Schema: string(extract.SchemaStudentRecord), Unparsed: result.Unparsed}
		if result.Unparsed {
			envelope.Raw = result.Raw
		} else {
			envelope.Data = result.Data
		}
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	doc.StructuredJSON = string(encoded)
	doc.UpdatedAt = time.Now()
	return m.store.PutDocument(doc)
}
