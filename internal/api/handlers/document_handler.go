package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/cache/redis"
	"github.com/gradelens/backend/internal/middleware/auth"
	"github.com/gradelens/backend/internal/objectstore"
	"github.com/gradelens/backend/internal/storage/models"
	"github.com/gradelens/backend/pkg/logger"
)

// DocumentLifecycle is the slice of the document manager the HTTP layer
// drives.
type DocumentLifecycle interface {
	RecordUpload(ctx context.Context, ownerID string, docType models.DocumentType, fileRef string) (*models.Document, error)
	ExtractText(ctx context.Context, ownerID string, docType models.DocumentType) (*models.Document, error)
	Get(ctx context.Context, ownerID string, docType models.DocumentType) (*models.Document, error)
}

// EventPublisher announces finalized uploads; the subscriber picks them up
// and runs extraction asynchronously.
type EventPublisher interface {
	PublishObjectFinalized(ctx context.Context, stream string, ev redis.ObjectFinalizedEvent) error
}

type DocumentHandler struct {
	lifecycle DocumentLifecycle
	objects   objectstore.Store
	publisher EventPublisher
	stream    string
}

func NewDocumentHandler(lifecycle DocumentLifecycle, objects objectstore.Store, publisher EventPublisher, stream string) *DocumentHandler {
	return &DocumentHandler{
		lifecycle: lifecycle,
		objects:   objects,
		publisher: publisher,
		stream:    stream,
	}
}

// UploadDocument stores the file bytes, records the upload, and announces
// it on the event stream so extraction starts in the background. The
// response reports status uploaded; clients poll GetDocument for progress.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)
	docType := models.DocumentType(c.Params("type"))
	if !docType.Valid() {
		return respondError(c, apperr.Newf(apperr.KindValidation, "invalid document type: %s", docType))
	}

	var req struct {
		FileBase64 string `json:"file_base64"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	if req.FileBase64 == "" {
		return respondError(c, apperr.MissingField("file_base64"))
	}

	data, err := base64.StdEncoding.DecodeString(req.FileBase64)
	if err != nil {
		return respondError(c, apperr.New(apperr.KindValidation, "file_base64 is not valid base64"))
	}

	ref := objectstore.NewFileRef(ownerID, string(docType))
	if err := h.objects.Put(c.Context(), ref, data); err != nil {
		return respondError(c, apperr.Wrap(apperr.KindInternal, "failed to store file", err))
	}

	doc, err := h.lifecycle.RecordUpload(c.Context(), ownerID, docType, ref)
	if err != nil {
		return respondError(c, err)
	}

	if h.publisher != nil {
		ev := redis.ObjectFinalizedEvent{OwnerID: ownerID, DocType: string(docType), FileRef: ref}
		if err := h.publisher.PublishObjectFinalized(context.WithoutCancel(c.Context()), h.stream, ev); err != nil {
			logger.Warn("Failed to publish upload event, extraction must be requested explicitly",
				zap.String("owner_id", ownerID),
				zap.String("doc_type", string(docType)),
				zap.Error(err),
			)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(documentResponse(doc))
}

// GetDocument reports the extraction state of one document.
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)
	docType := models.DocumentType(c.Params("type"))
	if !docType.Valid() {
		return respondError(c, apperr.Newf(apperr.KindValidation, "invalid document type: %s", docType))
	}

	doc, err := h.lifecycle.Get(c.Context(), ownerID, docType)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(documentResponse(doc))
}

// ExtractDocument runs extraction synchronously. Legal for documents in any
// state, which is how failed extractions are retried and processed ones
// refreshed.
func (h *DocumentHandler) ExtractDocument(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)
	docType := models.DocumentType(c.Params("type"))
	if !docType.Valid() {
		return respondError(c, apperr.Newf(apperr.KindValidation, "invalid document type: %s", docType))
	}

	doc, err := h.lifecycle.ExtractText(c.Context(), ownerID, docType)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(documentResponse(doc))
}

func documentResponse(doc *models.Document) fiber.Map {
	resp := fiber.Map{
		"id":         doc.ID,
		"doc_type":   string(doc.Type),
		"status":     string(doc.Status),
		"created_at": doc.CreatedAt.Format(time.RFC3339),
		"updated_at": doc.UpdatedAt.Format(time.RFC3339),
	}

	if doc.Status == models.StatusProcessed {
		resp["text"] = doc.Text
	}
	if doc.StructuredJSON != "" {
		resp["structured"] = json.RawMessage(doc.StructuredJSON)
	}
	if doc.FailureCause != "" {
		resp["failure_cause"] = doc.FailureCause
	}
	if doc.LastExtractedAt != nil {
		resp["last_extracted_at"] = doc.LastExtractedAt.Format(time.RFC3339)
	}

	return resp
}
