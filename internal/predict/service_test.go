package predict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradelens/backend/internal/apperr"
	"github.com/gradelens/backend/internal/llm"
	"github.com/gradelens/backend/internal/storage/models"
)

type fakeStore struct {
	prompt     map[string]*models.Prediction
	regression map[string]*models.Prediction
	combined   []*models.CombinedPrediction
	examples   []models.TrainingExample
	lastPrompt *models.Prediction
	lastRegr   *models.Prediction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prompt:     make(map[string]*models.Prediction),
		regression: make(map[string]*models.Prediction),
	}
}

func (s *fakeStore) InsertPromptPrediction(p *models.Prediction) error {
	s.prompt[p.OwnerID+"/"+p.ID] = p
	s.lastPrompt = p
	return nil
}

func (s *fakeStore) InsertRegressionPrediction(p *models.Prediction) error {
	s.regression[p.OwnerID+"/"+p.ID] = p
	s.lastRegr = p
	return nil
}

func (s *fakeStore) GetPromptPrediction(ownerID, id string) (*models.Prediction, error) {
	return s.prompt[ownerID+"/"+id], nil
}

func (s *fakeStore) GetRegressionPrediction(ownerID, id string) (*models.Prediction, error) {
	return s.regression[ownerID+"/"+id], nil
}

func (s *fakeStore) InsertCombinedPrediction(p *models.CombinedPrediction) error {
	s.combined = append(s.combined, p)
	return nil
}

func (s *fakeStore) LatestPromptPrediction(ownerID string) (*models.Prediction, error) {
	return s.lastPrompt, nil
}

func (s *fakeStore) LatestRegressionPrediction(ownerID string) (*models.Prediction, error) {
	return s.lastRegr, nil
}

func (s *fakeStore) LatestCombinedPrediction(ownerID string) (*models.CombinedPrediction, error) {
	if len(s.combined) == 0 {
		return nil, nil
	}
	return s.combined[len(s.combined)-1], nil
}

func (s *fakeStore) ListTrainingExamples() ([]models.TrainingExample, error) {
	return s.examples, nil
}

func (s *fakeStore) AppendTrainingExample(ex models.TrainingExample) (int, error) {
	ex.ID = len(s.examples) + 1
	s.examples = append(s.examples, ex)
	return ex.ID, nil
}

func (s *fakeStore) SeedTrainingExamples(examples []models.TrainingExample) error {
	if len(s.examples) > 0 {
		return nil
	}
	s.examples = append(s.examples, examples...)
	return nil
}

type cannedCompleter struct {
	content string
	err     error
}

func (c *cannedCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: c.content}, nil
}

func validRecord() models.StudentRecord {
	return models.StudentRecord{
		PreviousGrades:   []float64{85, 90},
		GPA:              floatPtr(3.5),
		AssignmentWeight: floatPtr(0.4),
		ExamWeight:       floatPtr(0.6),
	}
}

func TestPredictWithPrompt(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{content: `{"grade": 88, "reasoning": "steady performance"}`}, time.Minute)

	prediction, err := svc.PredictWithPrompt(context.Background(), "alice", models.CourseData{CourseName: "Databases"})
	require.NoError(t, err)

	assert.Equal(t, 88.0, prediction.Grade)
	assert.Equal(t, "steady performance", prediction.Reasoning)
	assert.Equal(t, models.ModelChatGPT, prediction.Model)
	assert.False(t, prediction.Unparsed)
	assert.NotEmpty(t, prediction.ID)
	assert.NotNil(t, store.prompt["alice/"+prediction.ID])
}

func TestPredictWithPromptRequiresCourseName(t *testing.T) {
	svc := NewService(newFakeStore(), nil, &cannedCompleter{}, time.Minute)

	_, err := svc.PredictWithPrompt(context.Background(), "alice", models.CourseData{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestPredictWithPromptDegradesOnMalformedResponse(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{content: "probably a B+"}, time.Minute)

	prediction, err := svc.PredictWithPrompt(context.Background(), "alice", models.CourseData{CourseName: "Databases"})
	require.NoError(t, err)

	assert.True(t, prediction.Unparsed)
	assert.Equal(t, 0.0, prediction.Grade)
	assert.Equal(t, "probably a B+", prediction.Reasoning)
}

func TestPredictWithRegressionSeedsEmptyStore(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{}, time.Minute)

	prediction, _, err := svc.PredictWithRegression(context.Background(), "alice", validRecord())
	require.NoError(t, err)

	assert.Len(t, store.examples, 3)
	assert.Equal(t, models.ModelLinearRegression, prediction.Model)
	assert.NotNil(t, store.regression["alice/"+prediction.ID])
}

func TestPredictWithRegressionFlagsSparseData(t *testing.T) {
	store := newFakeStore()
	store.examples = []models.TrainingExample{
		{ID: 1, PreviousGrades: []float64{85}, GPA: 3.5, AssignmentWeight: 0.4, ExamWeight: 0.6, FinalGrade: 88},
	}
	svc := NewService(store, nil, &cannedCompleter{}, time.Minute)

	_, lowConfidence, err := svc.PredictWithRegression(context.Background(), "alice", validRecord())
	require.NoError(t, err)
	assert.True(t, lowConfidence)
}

func TestAddTrainingExample(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{}, time.Minute)

	grade := 84.0
	id, err := svc.AddTrainingExample(context.Background(), validRecord(), &grade)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = svc.AddTrainingExample(context.Background(), validRecord(), nil)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCombineRequiresBothPredictions(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{}, time.Minute)

	require.NoError(t, store.InsertPromptPrediction(&models.Prediction{
		ID: "p-1", OwnerID: "alice", Grade: 90, Reasoning: "good record", Model: models.ModelChatGPT,
	}))

	_, err := svc.Combine(context.Background(), "alice", "p-1", "missing")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = svc.Combine(context.Background(), "alice", "missing", "ml-1")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCombinePersistsResult(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{}, time.Minute)

	require.NoError(t, store.InsertPromptPrediction(&models.Prediction{
		ID: "p-1", OwnerID: "alice", Grade: 90, Reasoning: "good record", Model: models.ModelChatGPT,
	}))
	require.NoError(t, store.InsertRegressionPrediction(&models.Prediction{
		ID: "ml-1", OwnerID: "alice", Grade: 82, Model: models.ModelLinearRegression,
	}))

	combined, err := svc.Combine(context.Background(), "alice", "p-1", "ml-1")
	require.NoError(t, err)

	assert.Equal(t, 86.0, combined.Grade)
	assert.Equal(t, models.ConfidenceMedium, combined.Confidence)
	assert.Equal(t, "good record", combined.Reasoning)
	assert.NotEmpty(t, combined.ID)
	require.Len(t, store.combined, 1)
}

func TestLatestCollectsEachKind(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, &cannedCompleter{content: `{"grade": 88, "reasoning": "r"}`}, time.Minute)

	latest, err := svc.Latest(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, latest.ChatGPT)
	assert.Nil(t, latest.ML)
	assert.Nil(t, latest.Combined)

	prompt, err := svc.PredictWithPrompt(context.Background(), "alice", models.CourseData{CourseName: "Databases"})
	require.NoError(t, err)
	regression, _, err := svc.PredictWithRegression(context.Background(), "alice", validRecord())
	require.NoError(t, err)
	_, err = svc.Combine(context.Background(), "alice", prompt.ID, regression.ID)
	require.NoError(t, err)

	latest, err = svc.Latest(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, latest.ChatGPT)
	require.NotNil(t, latest.ML)
	require.NotNil(t, latest.Combined)
	assert.Equal(t, prompt.ID, latest.ChatGPT.ID)
	assert.Equal(t, regression.ID, latest.ML.ID)
}
