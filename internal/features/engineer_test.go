package features_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftwell/turnaround/internal/domain/model"
	"github.com/craftwell/turnaround/internal/features"
	"github.com/craftwell/turnaround/internal/testutil"
)

func TestEngineerDeterministic(t *testing.T) {
	order := testutil.NewOrder("ORD-1").
		WithCustomer("CUST-007").
		WithIntake(time.Date(2026, 2, 14, 10, 30, 0, 0, time.UTC)).
		RushStandard().
		WithRepairs("replace zipper").
		Build()
	stats := map[string]model.CustomerStats{
		"CUST-007": {MeanDays: 4.2, StdDevDays: 1.1, CompletedCount: 9},
	}

	a := features.Engineer(&order, stats)
	b := features.Engineer(&order, stats)
	assert.Equal(t, a, b)
	assert.Equal(t, a.Values(), b.Values())
}

func TestEngineerTemporalFields(t *testing.T) {
	// Saturday, February 14th 2026: month 2, quarter 1, weekend.
	order := testutil.NewOrder("ORD-1").
		WithIntake(time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)).
		Build()

	v := features.Engineer(&order, nil)
	assert.InDelta(t, 2, v.IntakeMonth, 0)
	assert.InDelta(t, 1, v.IntakeQuarter, 0)
	assert.InDelta(t, 1, v.WeekendIntake, 0)
	assert.InDelta(t, 6, v.IntakeDayOfWeek, 0)
}

func TestEngineerRequiredDateSentinel(t *testing.T) {
	order := testutil.NewOrder("ORD-1").Build()
	v := features.Engineer(&order, nil)
	assert.InDelta(t, 0, v.HasRequiredDate, 0)
	assert.InDelta(t, features.NoRequiredDateSentinel, v.DaysUntilRequired, 0)

	withDate := testutil.NewOrder("ORD-2").
		WithRequiredBy(order.IntakeAt.AddDate(0, 0, 4)).
		Build()
	v = features.Engineer(&withDate, nil)
	assert.InDelta(t, 1, v.HasRequiredDate, 0)
	assert.InDelta(t, 4, v.DaysUntilRequired, 1e-9)
}

func TestEngineerRushOrdinal(t *testing.T) {
	plain := testutil.NewOrder("ORD-1").Build()
	standard := testutil.NewOrder("ORD-2").RushStandard().Build()
	firm := testutil.NewOrder("ORD-3").RushFirm().Build()
	both := testutil.NewOrder("ORD-4").RushStandard().RushFirm().Build()

	assert.InDelta(t, 0, features.Engineer(&plain, nil).RushIntensity, 0)
	assert.InDelta(t, 1, features.Engineer(&standard, nil).RushIntensity, 0)
	assert.InDelta(t, 2, features.Engineer(&firm, nil).RushIntensity, 0)
	// Firm dominates when both flags are set.
	assert.InDelta(t, 2, features.Engineer(&both, nil).RushIntensity, 0)
	assert.InDelta(t, 1, features.Engineer(&both, nil).AnyRush, 0)
}

func TestEngineerIgnoresOutcomeStamps(t *testing.T) {
	base := testutil.NewOrder("ORD-1").
		WithCustomer("CUST-007").
		RushStandard().
		WithRepairs("replace zipper").
		Build()
	stamped := base
	cleaned := base.IntakeAt.AddDate(0, 0, 2)
	treated := base.IntakeAt.AddDate(0, 0, 3)
	completed := base.IntakeAt.AddDate(0, 0, 5)
	stamped.CleanedAt = &cleaned
	stamped.TreatedAt = &treated
	stamped.CompletedAt = &completed

	stats := map[string]model.CustomerStats{
		"CUST-007": {MeanDays: 4.2, StdDevDays: 1.1, CompletedCount: 9},
	}

	// Stage and completion stamps describe the outcome, not the order as it
	// looked at intake: the feature vector must not see them.
	assert.Equal(t, features.Engineer(&base, stats), features.Engineer(&stamped, stats))
}

func TestEngineerUnseenCustomerGetsZeroStats(t *testing.T) {
	order := testutil.NewOrder("ORD-1").WithCustomer("CUST-NEW").Build()
	stats := map[string]model.CustomerStats{
		"CUST-OLD": {MeanDays: 6, StdDevDays: 2, CompletedCount: 12},
	}

	v := features.Engineer(&order, stats)
	assert.Zero(t, v.CustomerMeanDays)
	assert.Zero(t, v.CustomerStdDevDays)
	assert.Zero(t, v.CustomerOrderCount)
}

func TestCustomerCodeStable(t *testing.T) {
	code := features.CustomerCode("CUST-007")
	assert.Equal(t, code, features.CustomerCode("CUST-007"))
	assert.GreaterOrEqual(t, code, 0)
	assert.Less(t, code, 10000)
	assert.NotEqual(t, code, features.CustomerCode("CUST-008"))
}

func TestForTrainingStripsStageDates(t *testing.T) {
	order := testutil.NewOrder("ORD-1").
		CleanedAfter(2).
		CompletedAfter(5).
		Build()
	treated := order.IntakeAt.AddDate(0, 0, 3)
	order.TreatedAt = &treated

	stripped := features.ForTraining(order)
	assert.Nil(t, stripped.CleanedAt)
	assert.Nil(t, stripped.TreatedAt)
	assert.NotNil(t, stripped.CompletedAt)
	// The original is untouched.
	assert.NotNil(t, order.CleanedAt)
}

func TestBuildCustomerStats(t *testing.T) {
	rows := []model.CompletedOrder{
		testutil.NewOrder("A1").WithCustomer("CUST-A").CompletedAfter(4).BuildCompleted(),
		testutil.NewOrder("A2").WithCustomer("CUST-A").CompletedAfter(6).BuildCompleted(),
		testutil.NewOrder("B1").WithCustomer("CUST-B").CompletedAfter(3).BuildCompleted(),
	}

	stats := features.BuildCustomerStats(rows)
	require.Len(t, stats, 2)

	a := stats["CUST-A"]
	assert.InDelta(t, 5.0, a.MeanDays, 1e-9)
	assert.Equal(t, 2, a.CompletedCount)
	assert.Greater(t, a.StdDevDays, 0.0)

	b := stats["CUST-B"]
	assert.InDelta(t, 3.0, b.MeanDays, 1e-9)
	assert.Equal(t, 1, b.CompletedCount)
	// A single completed order carries no spread.
	assert.Zero(t, b.StdDevDays)
}
