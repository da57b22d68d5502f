package features

import (
	"gonum.org/v1/gonum/stat"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// BuildCustomerStats groups the given rows by customer and aggregates their
// completion days. The caller decides the partition: interactive training
// passes only the training split, so held-out rows never contribute to the
// statistics that end up in their own feature vectors; fully-automated
// retrains pass everything, where no leakage channel exists.
func BuildCustomerStats(rows []model.CompletedOrder) map[string]model.CustomerStats {
	byCustomer := make(map[string][]float64)
	for i := range rows {
		byCustomer[rows[i].CustomerID] = append(byCustomer[rows[i].CustomerID], rows[i].Days)
	}

	out := make(map[string]model.CustomerStats, len(byCustomer))
	for customerID, days := range byCustomer {
		cs := model.CustomerStats{
			MeanDays:       stat.Mean(days, nil),
			CompletedCount: len(days),
		}
		if len(days) > 1 {
			cs.StdDevDays = stat.StdDev(days, nil)
		}
		out[customerID] = cs
	}
	return out
}
