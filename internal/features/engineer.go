// Package features turns orders into the fixed-width numeric vectors the
// boosted ensemble consumes. Engineering is a pure function of the order and
// the customer statistics table, and is used identically at training and
// prediction time: nothing here may read a field that is unknown while an
// order is still open.
package features

import (
	"hash/fnv"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// NoRequiredDateSentinel is the days-until-required value used when an order
// carries no required-by date.
const NoRequiredDateSentinel = 999

// customerCodeBuckets bounds the stable integer encoding of customer IDs.
const customerCodeBuckets = 10000

// Engineer computes the feature vector for one order. Deterministic:
// identical inputs yield bit-identical output. Customers absent from stats
// receive zero-valued aggregates, exactly what an unseen customer gets at
// prediction time.
func Engineer(order *model.Order, stats map[string]model.CustomerStats) model.FeatureVector {
	v := model.FeatureVector{
		IntakeMonth:       float64(order.IntakeAt.Month()),
		IntakeDayOfWeek:   float64(order.IntakeAt.Weekday()),
		IntakeQuarter:     float64((int(order.IntakeAt.Month())-1)/3 + 1),
		DaysUntilRequired: NoRequiredDateSentinel,

		CustomerCode: float64(CustomerCode(order.CustomerID)),

		StorageDays:        float64(order.StorageDays),
		InstructionsLength: float64(len(order.SpecialInstructions)),
		RepairsLength:      float64(len(order.RepairsNeeded)),
	}

	_, week := order.IntakeAt.ISOWeek()
	v.IntakeWeekOfYear = float64(week)

	if wd := order.IntakeAt.Weekday(); wd == 0 || wd == 6 {
		v.WeekendIntake = 1
	}
	if order.RequiredBy != nil {
		v.HasRequiredDate = 1
		v.DaysUntilRequired = order.RequiredBy.Sub(order.IntakeAt).Hours() / 24
	}

	if order.RushStandard {
		v.RushStandard = 1
	}
	if order.RushFirm {
		v.RushFirm = 1
	}
	v.RushIntensity = rushIntensity(order)
	if order.RushStandard || order.RushFirm {
		v.AnyRush = 1
	}

	if cs, ok := stats[order.CustomerID]; ok {
		v.CustomerMeanDays = cs.MeanDays
		v.CustomerStdDevDays = cs.StdDevDays
		v.CustomerOrderCount = float64(cs.CompletedCount)
	}

	if len(order.RepairsNeeded) > 0 {
		v.HasRepairs = 1
	}

	return v
}

// rushIntensity maps the two independent rush flags onto an ordinal scale:
// none=0, standard=1, firm=2. Firm dominates when both are set.
func rushIntensity(order *model.Order) float64 {
	switch {
	case order.RushFirm:
		return 2
	case order.RushStandard:
		return 1
	default:
		return 0
	}
}

// CustomerCode returns a stable integer encoding of a customer identifier.
// FNV-1a keeps the mapping deterministic across processes and releases, which
// matters because the encoding is baked into stored artifacts.
func CustomerCode(customerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(customerID))
	return int(h.Sum32() % customerCodeBuckets)
}

// ForTraining returns a copy of the order with the intermediate stage dates
// nulled out. At prediction time an open order's clean and treat dates are
// always unknown, so training rows must be stripped the same way before
// feature computation or the training distribution will not match serving.
// There is deliberately a single variant of this augmentation: "pretend some
// stages are known" dilutes the signal without matching any real request.
func ForTraining(order model.Order) model.Order {
	order.CleanedAt = nil
	order.TreatedAt = nil
	return order
}
