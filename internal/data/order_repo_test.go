package data_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/craftwell/turnaround/internal/data"
	"github.com/craftwell/turnaround/internal/domain/model"
)

func completedDays(days ...float64) []model.CompletedOrder {
	out := make([]model.CompletedOrder, len(days))
	for i, d := range days {
		out[i] = model.CompletedOrder{Days: d}
	}
	return out
}

func keptDays(rows []model.CompletedOrder) []float64 {
	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = rows[i].Days
	}
	return out
}

func TestFilterOutliersDropsImplausibleRows(t *testing.T) {
	rows := completedDays(-1, 3, 4, 400, 5)
	kept := data.FilterOutliers(rows, data.OutlierFilter{MaxPlausibleDays: 365, Sigma: 3})

	assert.Equal(t, []float64{3, 4, 5}, keptDays(kept))
}

func TestFilterOutliersCutsBeyondSigma(t *testing.T) {
	// Ten tight rows around 4 plus one at 50: the 50 sits far past
	// mean + 3*stddev of the full candidate set and must go.
	rows := completedDays(3, 4, 4, 4, 4, 4, 4, 4, 5, 4, 50)
	kept := data.FilterOutliers(rows, data.OutlierFilter{MaxPlausibleDays: 365, Sigma: 3})

	assert.NotContains(t, keptDays(kept), 50.0)
	assert.Len(t, kept, 10)
}

func TestFilterOutliersKeepsSlowButNormalRows(t *testing.T) {
	rows := completedDays(2, 3, 4, 5, 6, 7, 8)
	kept := data.FilterOutliers(rows, data.OutlierFilter{MaxPlausibleDays: 365, Sigma: 3})

	assert.Len(t, kept, len(rows), "a wide but smooth spread has no sigma outliers")
}

func TestFilterOutliersTooFewPlausibleRows(t *testing.T) {
	// One plausible row cannot support a stddev cutoff; it passes through.
	rows := completedDays(-2, 500, 6)
	kept := data.FilterOutliers(rows, data.OutlierFilter{MaxPlausibleDays: 365, Sigma: 3})

	assert.Equal(t, []float64{6}, keptDays(kept))
}

func TestFilterOutliersEmptyInput(t *testing.T) {
	kept := data.FilterOutliers(nil, data.OutlierFilter{MaxPlausibleDays: 365, Sigma: 3})
	assert.Empty(t, kept)
}
