package predict

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/extract"
	"github.com/gradelens/backend/internal/llm"
	"github.com/gradelens/backend/internal/metrics"
	"github.com/gradelens/backend/internal/storage/models"
	"github.com/gradelens/backend/pkg/logger"
)

// Store is the slice of the record store the predictor needs.
type Store interface {
	InsertPromptPrediction(p *models.Prediction) error
	InsertRegressionPrediction(p *models.Prediction) error
	GetPromptPrediction(ownerID, id string) (*models.Prediction, error)
	GetRegressionPrediction(ownerID, id string) (*models.Prediction, error)
	InsertCombinedPrediction(p *models.CombinedPrediction) error
	LatestPromptPrediction(ownerID string) (*models.Prediction, error)
	LatestRegressionPrediction(ownerID string) (*models.Prediction, error)
	LatestCombinedPrediction(ownerID string) (*models.CombinedPrediction, error)
	ListTrainingExamples() ([]models.TrainingExample, error)
	AppendTrainingExample(ex models.TrainingExample) (int, error)
	SeedTrainingExamples(examples []models.TrainingExample) error
}

// Cache holds the latest prediction per owner and kind. Optional: a nil
// cache disables it.
type Cache interface {
	SetLatestPrediction(ctx context.Context, ownerID, kind string, prediction interface{}, ttl time.Duration) error
	GetLatestPrediction(ctx context.Context, ownerID, kind string, prediction interface{}) (bool, error)
}

const (
	kindPrompt     = "prompt"
	kindRegression = "regression"
	kindCombined   = "combined"
)

// seedExamples bootstraps the shared training set the first time a
// regression prediction is requested against an empty store.
var seedExamples = []models.TrainingExample{
	{ID: 1, PreviousGrades: []float64{85, 90, 92}, GPA: 3.6, AssignmentWeight: 0.3, ExamWeight: 0.7, FinalGrade: 90},
	{ID: 2, PreviousGrades: []float64{70, 75, 78}, GPA: 2.8, AssignmentWeight: 0.5, ExamWeight: 0.5, FinalGrade: 80},
	{ID: 3, PreviousGrades: []float64{88, 90, 85}, GPA: 3.5, AssignmentWeight: 0.4, ExamWeight: 0.6, FinalGrade: 88},
}

type Service struct {
	store    Store
	cache    Cache
	llm      extract.Completer
	cacheTTL time.Duration
}

func NewService(store Store, cache Cache, completer extract.Completer, cacheTTL time.Duration) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		llm:      completer,
		cacheTTL: cacheTTL,
	}
}

// PredictWithPrompt asks the advisor model for a grade estimate built from
// structured course data. A malformed completion degrades to an unparsed
// prediction instead of failing.
func (s *Service) PredictWithPrompt(ctx context.Context, ownerID string, course models.CourseData) (*models.Prediction, error) {
	if course.CourseName == "" {
		return nil, apperr.MissingField("course_name")
	}

	prompt := BuildPrompt(course)

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: advisorSystemPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "grade prediction failed", err)
	}

	metrics.LLMTokensUsed.WithLabelValues("prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues("completion").Add(float64(resp.Usage.CompletionTokens))

	grade, reasoning, unparsed := parseAdvisorResponse(resp.Content)
	if unparsed {
		logger.Warn("Advisor response not parseable, degrading",
			zap.String("owner_id", ownerID),
			zap.Int("response_length", len(resp.Content)),
		)
	}

	prediction := &models.Prediction{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Grade:     grade,
		Reasoning: reasoning,
		Model:     models.ModelChatGPT,
		Unparsed:  unparsed,
		CreatedAt: time.Now(),
	}

	if err := s.store.InsertPromptPrediction(prediction); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store prediction", err)
	}

	s.cacheLatest(ctx, ownerID, kindPrompt, prediction)
	metrics.PredictionsTotal.WithLabelValues(models.ModelChatGPT).Inc()

	return prediction, nil
}

// PredictWithRegression re-reads the full training set and refits the model
// on every request. Nothing is cached between requests: staleness is always
// zero at the cost of throughput, and changing that trades observable
// latency, not output.
func (s *Service) PredictWithRegression(ctx context.Context, ownerID string, record models.StudentRecord) (*models.Prediction, bool, error) {
	features, err := BuildFeatures(record)
	if err != nil {
		return nil, false, err
	}

	if err := s.store.SeedTrainingExamples(seedExamples); err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "failed to seed training data", err)
	}

	examples, err := s.store.ListTrainingExamples()
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "failed to load training data", err)
	}

	model := Train(examples)
	grade := model.Predict(features)

	if model.LowConfidenceData {
		logger.Warn("Regression fit is degenerate",
			zap.String("owner_id", ownerID),
			zap.Int("examples", len(examples)),
		)
	}

	prediction := &models.Prediction{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Grade:     grade,
		Model:     models.ModelLinearRegression,
		CreatedAt: time.Now(),
	}

	if err := s.store.InsertRegressionPrediction(prediction); err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "failed to store prediction", err)
	}

	s.cacheLatest(ctx, ownerID, kindRegression, prediction)
	metrics.PredictionsTotal.WithLabelValues(models.ModelLinearRegression).Inc()

	return prediction, model.LowConfidenceData, nil
}

// AddTrainingExample appends one labeled row to the process-wide training
// set. The id is issued by the store; the set is append-only.
func (s *Service) AddTrainingExample(ctx context.Context, record models.StudentRecord, finalGrade *float64) (int, error) {
	features, err := BuildFeatures(record)
	if err != nil {
		return 0, err
	}
	if finalGrade == nil {
		return 0, apperr.MissingField("final_grade")
	}

	id, err := s.store.AppendTrainingExample(models.TrainingExample{
		PreviousGrades:   record.PreviousGrades,
		GPA:              features.GPA,
		AssignmentWeight: features.AssignmentWeight,
		ExamWeight:       features.ExamWeight,
		FinalGrade:       *finalGrade,
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to append training example", err)
	}

	metrics.TrainingExamplesAdded.Inc()
	return id, nil
}

// Combine merges two predictions that already exist for this owner.
func (s *Service) Combine(ctx context.Context, ownerID, promptID, regressionID string) (*models.CombinedPrediction, error) {
	prompt, err := s.store.GetPromptPrediction(ownerID, promptID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load prediction", err)
	}
	if prompt == nil {
		return nil, apperr.New(apperr.KindNotFound, "chatgpt prediction not found")
	}

	regression, err := s.store.GetRegressionPrediction(ownerID, regressionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load prediction", err)
	}
	if regression == nil {
		return nil, apperr.New(apperr.KindNotFound, "ml prediction not found")
	}

	combined := Combine(prompt, regression)
	combined.ID = uuid.New().String()
	combined.OwnerID = ownerID
	combined.CreatedAt = time.Now()

	if err := s.store.InsertCombinedPrediction(&combined); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store combined prediction", err)
	}

	s.cacheLatest(ctx, ownerID, kindCombined, &combined)
	metrics.CombinedConfidence.WithLabelValues(string(combined.Confidence)).Inc()

	return &combined, nil
}

// LatestPredictions carries the most recent prediction of each kind, any
// of which may be absent.
type LatestPredictions struct {
	ChatGPT  *models.Prediction         `json:"chatgptPrediction"`
	ML       *models.Prediction         `json:"mlPrediction"`
	Combined *models.CombinedPrediction `json:"combinedPrediction"`
}

func (s *Service) Latest(ctx context.Context, ownerID string) (*LatestPredictions, error) {
	latest := &LatestPredictions{}

	var cached models.Prediction
	if hit, _ := s.cachedLatest(ctx, ownerID, kindPrompt, &cached); hit {
		p := cached
		latest.ChatGPT = &p
	} else {
		p, err := s.store.LatestPromptPrediction(ownerID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to load latest prediction", err)
		}
		latest.ChatGPT = p
		if p != nil {
			s.cacheLatest(ctx, ownerID, kindPrompt, p)
		}
	}

	var cachedML models.Prediction
	if hit, _ := s.cachedLatest(ctx, ownerID, kindRegression, &cachedML); hit {
		p := cachedML
		latest.ML = &p
	} else {
		p, err := s.store.LatestRegressionPrediction(ownerID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to load latest prediction", err)
		}
		latest.ML = p
		if p != nil {
			s.cacheLatest(ctx, ownerID, kindRegression, p)
		}
	}

	var cachedCombined models.CombinedPrediction
	if hit, _ := s.cachedLatest(ctx, ownerID, kindCombined, &cachedCombined); hit {
		p := cachedCombined
		latest.Combined = &p
	} else {
		p, err := s.store.LatestCombinedPrediction(ownerID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to load latest prediction", err)
		}
		latest.Combined = p
		if p != nil {
			s.cacheLatest(ctx, ownerID, kindCombined, p)
		}
	}

	return latest, nil
}

func (s *Service) cacheLatest(ctx context.Context, ownerID, kind string, prediction interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetLatestPrediction(ctx, ownerID, kind, prediction, s.cacheTTL); err != nil {
		logger.Warn("Failed to cache latest prediction", zap.Error(err), zap.String("kind", kind))
	}
}

func (s *Service) cachedLatest(ctx context.Context, ownerID, kind string, out interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.GetLatestPrediction(ctx, ownerID, kind, out)
}
