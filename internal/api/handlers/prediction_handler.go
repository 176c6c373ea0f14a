package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/middleware/auth"
	"github.com/gradelens/backend/internal/predict"
	"github.com/gradelens/backend/internal/storage/models"
)

// Predictor is the slice of the prediction service the HTTP layer drives.
type Predictor interface {
	PredictWithPrompt(ctx context.Context, ownerID string, course models.CourseData) (*models.Prediction, error)
	PredictWithRegression(ctx context.Context, ownerID string, record models.StudentRecord) (*models.Prediction, bool, error)
	AddTrainingExample(ctx context.Context, record models.StudentRecord, finalGrade *float64) (int, error)
	Combine(ctx context.Context, ownerID, promptID, regressionID string) (*models.CombinedPrediction, error)
	Latest(ctx context.Context, ownerID string) (*predict.LatestPredictions, error)
}

type PredictionHandler struct {
	predictor Predictor
}

func NewPredictionHandler(predictor Predictor) *PredictionHandler {
	return &PredictionHandler{predictor: predictor}
}

// PredictWithPrompt asks the advisor model for a grade from structured
// course data supplied in the request body.
func (h *PredictionHandler) PredictWithPrompt(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)

	var course models.CourseData
	if err := c.BodyParser(&course); err != nil {
		return respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}

	prediction, err := h.predictor.PredictWithPrompt(c.Context(), ownerID, course)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(prediction)
}

// PredictWithRegression fits the regression model to the current training
// set and scores the supplied student record. The low_confidence_data flag
// marks predictions from a degenerate or underpopulated fit.
func (h *PredictionHandler) PredictWithRegression(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)

	var record models.StudentRecord
	if err := c.BodyParser(&record); err != nil {
		return respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}

	prediction, lowConfidence, err := h.predictor.PredictWithRegression(c.Context(), ownerID, record)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"prediction":          prediction,
		"low_confidence_data": lowConfidence,
	})
}

// AddTrainingExample appends one labeled row to the shared training set.
func (h *PredictionHandler) AddTrainingExample(c *fiber.Ctx) error {
	var req struct {
		models.StudentRecord
		FinalGrade *float64 `json:"final_grade"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}

	id, err := h.predictor.AddTrainingExample(c.Context(), req.StudentRecord, req.FinalGrade)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": id,
	})
}

// CombinePredictions merges two prior predictions, referenced by id, into a
// combined result with a confidence level.
func (h *PredictionHandler) CombinePredictions(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)

	var req struct {
		ChatGPTPredictionID string `json:"chatgpt_prediction_id"`
		MLPredictionID      string `json:"ml_prediction_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	if req.ChatGPTPredictionID == "" {
		return respondError(c, apperr.MissingField("chatgpt_prediction_id"))
	}
	if req.MLPredictionID == "" {
		return respondError(c, apperr.MissingField("ml_prediction_id"))
	}

	combined, err := h.predictor.Combine(c.Context(), ownerID, req.ChatGPTPredictionID, req.MLPredictionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(combined)
}

// GetLatestPredictions returns the most recent prediction of each kind for
// the caller; absent kinds are null.
func (h *PredictionHandler) GetLatestPredictions(c *fiber.Ctx) error {
	ownerID := auth.OwnerID(c)

	latest, err := h.predictor.Latest(c.Context(), ownerID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(latest)
}
