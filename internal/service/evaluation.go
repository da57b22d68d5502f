package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/craftwell/turnaround/internal/core"
)

// EvaluationServiceOptions bundles dependencies for NewEvaluationService.
type EvaluationServiceOptions struct {
	Snapshots core.SnapshotRepository
	Logger    *slog.Logger
}

// EvaluationService turns matured snapshot rows into an accuracy report.
// A snapshot row matures when its order completes, which makes the report
// self-labelling: no human ever marks an outcome.
type EvaluationService struct {
	snapshots core.SnapshotRepository
	logger    *slog.Logger
}

// NewEvaluationService creates a new EvaluationService.
func NewEvaluationService(opts EvaluationServiceOptions) *EvaluationService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &EvaluationService{snapshots: opts.Snapshots, logger: opts.Logger}
}

// DailyAccuracy is one snapshot date's realized error statistics.
type DailyAccuracy struct {
	Date          time.Time `json:"date"`
	Samples       int       `json:"samples"`
	MAE           float64   `json:"mae"`
	RMSE          float64   `json:"rmse"`
	MeanError     float64   `json:"mean_error"`
	MeanErrorLow  float64   `json:"mean_error_low"`
	MeanErrorHigh float64   `json:"mean_error_high"`
}

// Trend labels the direction of MAE over time.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendFlat      Trend = "flat"
)

// trendSlopeEpsilon is the MAE-per-day slope below which the trend is
// reported as flat rather than noise-chasing a direction.
const trendSlopeEpsilon = 0.01

// PerformanceReport aggregates matured predictions against observed outcomes.
type PerformanceReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	MaturedRows int             `json:"matured_rows"`
	OverallMAE  float64         `json:"overall_mae"`
	OverallRMSE float64         `json:"overall_rmse"`
	Daily       []DailyAccuracy `json:"daily"`
	TrendPerDay float64         `json:"trend_mae_per_day"`
	Trend       Trend           `json:"trend"`
}

// Evaluate groups matured snapshot rows by snapshot date and computes error
// statistics per date plus an overall MAE trend. Dates with no matured rows
// yet simply do not appear; they are pending, not zero-error.
func (s *EvaluationService) Evaluate(ctx context.Context) (*PerformanceReport, error) {
	matured, err := s.snapshots.MaturedRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load matured snapshot rows: %w", err)
	}

	report := &PerformanceReport{
		GeneratedAt: time.Now().UTC(),
		MaturedRows: len(matured),
		Daily:       []DailyAccuracy{},
		Trend:       TrendFlat,
	}
	if len(matured) == 0 {
		return report, nil
	}

	byDate := map[time.Time][]float64{}
	var absSum, sqSum float64
	for i := range matured {
		errDays := matured[i].PredictedDays - matured[i].ActualDays
		date := matured[i].SnapshotDate.UTC().Truncate(24 * time.Hour)
		byDate[date] = append(byDate[date], errDays)
		absSum += math.Abs(errDays)
		sqSum += errDays * errDays
	}
	report.OverallMAE = absSum / float64(len(matured))
	report.OverallRMSE = math.Sqrt(sqSum / float64(len(matured)))

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		report.Daily = append(report.Daily, dailyAccuracy(d, byDate[d]))
	}

	report.TrendPerDay, report.Trend = maeTrend(report.Daily)
	return report, nil
}

func dailyAccuracy(date time.Time, errs []float64) DailyAccuracy {
	var absSum, sqSum float64
	for _, e := range errs {
		absSum += math.Abs(e)
		sqSum += e * e
	}
	n := float64(len(errs))
	acc := DailyAccuracy{
		Date:      date,
		Samples:   len(errs),
		MAE:       absSum / n,
		RMSE:      math.Sqrt(sqSum / n),
		MeanError: stat.Mean(errs, nil),
	}

	// A t-interval on the mean signed error needs at least two samples; with
	// one, the bounds collapse onto the point estimate.
	if len(errs) < 2 {
		acc.MeanErrorLow = acc.MeanError
		acc.MeanErrorHigh = acc.MeanError
		return acc
	}
	sd := stat.StdDev(errs, nil)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	half := t.Quantile(0.975) * sd / math.Sqrt(n)
	acc.MeanErrorLow = acc.MeanError - half
	acc.MeanErrorHigh = acc.MeanError + half
	return acc
}

// maeTrend fits MAE against snapshot-date offset in days. Fewer than two
// distinct dates cannot carry a slope.
func maeTrend(daily []DailyAccuracy) (float64, Trend) {
	if len(daily) < 2 {
		return 0, TrendFlat
	}
	xs := make([]float64, len(daily))
	ys := make([]float64, len(daily))
	origin := daily[0].Date
	for i, d := range daily {
		xs[i] = d.Date.Sub(origin).Hours() / 24
		ys[i] = d.MAE
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	switch {
	case slope < -trendSlopeEpsilon:
		return slope, TrendImproving
	case slope > trendSlopeEpsilon:
		return slope, TrendDegrading
	default:
		return slope, TrendFlat
	}
}
