package predict

import (
	"math"

	"github.com/gradelens/backend/internal/storage/models"
)

const pivotTolerance = 1e-9

// Model is an ordinary least squares fit mapping a feature vector to a
// final grade. Coefficients holds the intercept first, then one weight per
// feature. LowConfidenceData marks a degenerate fit: fewer than two
// examples, or a training matrix without full rank. Such a model still
// predicts, but callers must not treat its output as reliable.
type Model struct {
	Coefficients      [5]float64
	LowConfidenceData bool
}

// Train fits OLS via the normal equations. The fit is attempted regardless
// of how little data there is; degeneracy is reported, not rejected.
func Train(examples []models.TrainingExample) *Model {
	model := &Model{}
	if len(examples) < 2 {
		model.LowConfidenceData = true
	}
	if len(examples) == 0 {
		return model
	}

	// A = XᵀX, b = Xᵀy over the design matrix with a leading 1 column.
	var a [5][5]float64
	var b [5]float64

	for _, ex := range examples {
		v := exampleFeatures(ex).Values()
		row := [5]float64{1, v[0], v[1], v[2], v[3]}
		for i := 0; i < 5; i++ {
			for j := 0; j < 5; j++ {
				a[i][j] += row[i] * row[j]
			}
			b[i] += row[i] * ex.FinalGrade
		}
	}

	coeffs, fullRank := solve(a, b)
	model.Coefficients = coeffs
	if !fullRank {
		model.LowConfidenceData = true
	}

	return model
}

// Predict evaluates the linear model. No clipping is applied; out-of-range
// grades are the combiner's problem to tolerate, not ours to hide.
func (m *Model) Predict(v FeatureVector) float64 {
	x := v.Values()
	return m.Coefficients[0] +
		m.Coefficients[1]*x[0] +
		m.Coefficients[2]*x[1] +
		m.Coefficients[3]*x[2] +
		m.Coefficients[4]*x[3]
}

// solve runs Gauss-Jordan elimination with partial pivoting on a 5x5
// system. Columns without a usable pivot get a zero coefficient and the
// system is reported as rank deficient.
func solve(a [5][5]float64, b [5]float64) ([5]float64, bool) {
	const n = 5
	var rowUsed [n]bool
	pivotRow := [n]int{-1, -1, -1, -1, -1}
	fullRank := true

	for col := 0; col < n; col++ {
		best := -1
		bestVal := pivotTolerance
		for row := 0; row < n; row++ {
			if rowUsed[row] {
				continue
			}
			if abs := math.Abs(a[row][col]); abs > bestVal {
				bestVal = abs
				best = row
			}
		}
		if best < 0 {
			fullRank = false
			continue
		}
		rowUsed[best] = true
		pivotRow[col] = best

		scale := a[best][col]
		for j := 0; j < n; j++ {
			a[best][j] /= scale
		}
		b[best] /= scale

		for row := 0; row < n; row++ {
			if row == best {
				continue
			}
			factor := a[row][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				a[row][j] -= factor * a[best][j]
			}
			b[row] -= factor * b[best]
		}
	}

	var coeffs [5]float64
	for col := 0; col < n; col++ {
		if pivotRow[col] >= 0 {
			coeffs[col] = b[pivotRow[col]]
		}
	}

	return coeffs, fullRank
}
