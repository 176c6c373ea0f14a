package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradelens/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestPutDocumentUpserts(t *testing.T) {
	client := newTestClient(t)
	now := time.Now()

	doc := &models.Document{
		ID:        "doc-1",
		OwnerID:   "alice",
		Type:      models.DocTypeSyllabus,
		FileRef:   "users/alice/syllabus/a.pdf",
		Status:    models.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, client.PutDocument(doc))

	doc.ID = "doc-2"
	doc.Status = models.StatusProcessed
	doc.Text = "extracted text"
	extractedAt := now.Add(time.Minute)
	doc.LastExtractedAt = &extractedAt
	require.NoError(t, client.PutDocument(doc))

	got, err := client.GetDocument("alice", models.DocTypeSyllabus)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "doc-2", got.ID)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Equal(t, "extracted text", got.Text)
	require.NotNil(t, got.LastExtractedAt)
	assert.Equal(t, extractedAt.Unix(), got.LastExtractedAt.Unix())
}

func TestGetDocumentMissing(t *testing.T) {
	client := newTestClient(t)

	got, err := client.GetDocument("nobody", models.DocTypeGrades)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDocumentsKeyedPerOwnerAndType(t *testing.T) {
	client := newTestClient(t)
	now := time.Now()

	for _, d := range []struct {
		owner string
		typ   models.DocumentType
	}{
		{"alice", models.DocTypeSyllabus},
		{"alice", models.DocTypeGrades},
		{"bob", models.DocTypeSyllabus},
	} {
		require.NoError(t, client.PutDocument(&models.Document{
			ID:        d.owner + "-" + string(d.typ),
			OwnerID:   d.owner,
			Type:      d.typ,
			FileRef:   "ref",
			Status:    models.StatusUploaded,
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}

	got, err := client.GetDocument("alice", models.DocTypeGrades)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice-grades", got.ID)

	got, err = client.GetDocument("bob", models.DocTypeGrades)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestPredictionOrdering(t *testing.T) {
	client := newTestClient(t)
	base := time.Now()

	for i, id := range []string{"p-1", "p-2", "p-3"} {
		require.NoError(t, client.InsertPromptPrediction(&models.Prediction{
			ID:        id,
			OwnerID:   "alice",
			Grade:     80 + float64(i),
			Reasoning: "r",
			Model:     models.ModelChatGPT,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err := client.LatestPromptPrediction("alice")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "p-3", latest.ID)
	assert.Equal(t, 82.0, latest.Grade)

	none, err := client.LatestPromptPrediction("bob")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetPredictionScopedToOwner(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertRegressionPrediction(&models.Prediction{
		ID:        "ml-1",
		OwnerID:   "alice",
		Grade:     85,
		Model:     models.ModelLinearRegression,
		CreatedAt: time.Now(),
	}))

	got, err := client.GetRegressionPrediction("alice", "ml-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ModelLinearRegression, got.Model)

	other, err := client.GetRegressionPrediction("bob", "ml-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestUnparsedFlagRoundTrips(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertPromptPrediction(&models.Prediction{
		ID:        "p-raw",
		OwnerID:   "alice",
		Grade:     0,
		Reasoning: "the raw model response",
		Model:     models.ModelChatGPT,
		Unparsed:  true,
		CreatedAt: time.Now(),
	}))

	got, err := client.GetPromptPrediction("alice", "p-raw")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Unparsed)
	assert.Equal(t, 0.0, got.Grade)
}

func TestCombinedPredictionRoundTrips(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertCombinedPrediction(&models.CombinedPrediction{
		ID:           "c-1",
		OwnerID:      "alice",
		Grade:        86,
		ChatGPTGrade: 90,
		MLGrade:      82,
		Confidence:   models.ConfidenceMedium,
		Reasoning:    "strong coursework",
		CreatedAt:    time.Now(),
	}))

	got, err := client.LatestCombinedPrediction("alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
	assert.Equal(t, 90.0, got.ChatGPTGrade)
	assert.Equal(t, 82.0, got.MLGrade)
}

func TestAppendTrainingExampleIssuesSequentialIDs(t *testing.T) {
	client := newTestClient(t)

	ex := models.TrainingExample{
		PreviousGrades:   []float64{80, 85},
		GPA:              3.2,
		AssignmentWeight: 0.4,
		ExamWeight:       0.6,
		FinalGrade:       84,
	}

	id1, err := client.AppendTrainingExample(ex)
	require.NoError(t, err)
	id2, err := client.AppendTrainingExample(ex)
	require.NoError(t, err)
	id3, err := client.AppendTrainingExample(ex)
	require.NoError(t, err)

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)
	assert.Equal(t, 3, id3)

	examples, err := client.ListTrainingExamples()
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, []float64{80, 85}, examples[0].PreviousGrades)
}

func TestSeedTrainingExamplesOnlyWhenEmpty(t *testing.T) {
	client := newTestClient(t)

	seed := []models.TrainingExample{
		{ID: 1, PreviousGrades: []float64{85}, GPA: 3.6, AssignmentWeight: 0.3, ExamWeight: 0.7, FinalGrade: 90},
		{ID: 2, PreviousGrades: []float64{70}, GPA: 2.8, AssignmentWeight: 0.5, ExamWeight: 0.5, FinalGrade: 80},
	}

	require.NoError(t, client.SeedTrainingExamples(seed))
	require.NoError(t, client.SeedTrainingExamples(seed))

	examples, err := client.ListTrainingExamples()
	require.NoError(t, err)
	assert.Len(t, examples, 2)

	// Appends continue after the highest seeded id.
	id, err := client.AppendTrainingExample(models.TrainingExample{
		PreviousGrades:   []float64{88},
		GPA:              3.5,
		AssignmentWeight: 0.4,
		ExamWeight:       0.6,
		FinalGrade:       88,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}
