package model

// FeatureVector is the fixed-width numeric representation of a single order.
// The field order is canonical: Values and FeatureNames must stay aligned, and
// the trainer persists FeatureNames alongside every artifact so a loaded model
// can detect a mismatch with the code that serves it.
//
// No field may read anything unknowable at prediction time. In particular the
// intermediate stage dates (cleaned_at, treated_at), the completion date, and
// any "age of the order" signal are excluded: stage flags leak the label, and
// order age is near zero for every open order while spanning months across
// historical rows, so a model trained on it falls apart at serving time.
type FeatureVector struct {
	// Temporal
	IntakeMonth       float64 `json:"intake_month"`
	IntakeDayOfWeek   float64 `json:"intake_day_of_week"`
	IntakeQuarter     float64 `json:"intake_quarter"`
	WeekendIntake     float64 `json:"weekend_intake"`
	HasRequiredDate   float64 `json:"has_required_date"`
	DaysUntilRequired float64 `json:"days_until_required"`
	IntakeWeekOfYear  float64 `json:"intake_week_of_year"`

	// Rush
	RushStandard  float64 `json:"rush_standard"`
	RushFirm      float64 `json:"rush_firm"`
	RushIntensity float64 `json:"rush_intensity"`
	AnyRush       float64 `json:"any_rush"`

	// Customer
	CustomerCode       float64 `json:"customer_code"`
	CustomerMeanDays   float64 `json:"customer_mean_days"`
	CustomerStdDevDays float64 `json:"customer_std_dev_days"`
	CustomerOrderCount float64 `json:"customer_order_count"`

	// Job
	StorageDays        float64 `json:"storage_days"`
	InstructionsLength float64 `json:"instructions_length"`
	RepairsLength      float64 `json:"repairs_length"`
	HasRepairs         float64 `json:"has_repairs"`
}

// featureNames lists every feature in canonical order.
var featureNames = []string{
	"intake_month",
	"intake_day_of_week",
	"intake_quarter",
	"weekend_intake",
	"has_required_date",
	"days_until_required",
	"intake_week_of_year",
	"rush_standard",
	"rush_firm",
	"rush_intensity",
	"any_rush",
	"customer_code",
	"customer_mean_days",
	"customer_std_dev_days",
	"customer_order_count",
	"storage_days",
	"instructions_length",
	"repairs_length",
	"has_repairs",
}

// FeatureCount is the fixed width of a FeatureVector.
const FeatureCount = 19

// FeatureNames returns the canonical feature order. The returned slice is a
// copy; callers may mutate it freely.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// Values flattens the vector into a float64 slice in canonical order.
func (f *FeatureVector) Values() []float64 {
	return []float64{
		f.IntakeMonth,
		f.IntakeDayOfWeek,
		f.IntakeQuarter,
		f.WeekendIntake,
		f.HasRequiredDate,
		f.DaysUntilRequired,
		f.IntakeWeekOfYear,
		f.RushStandard,
		f.RushFirm,
		f.RushIntensity,
		f.AnyRush,
		f.CustomerCode,
		f.CustomerMeanDays,
		f.CustomerStdDevDays,
		f.CustomerOrderCount,
		f.StorageDays,
		f.InstructionsLength,
		f.RepairsLength,
		f.HasRepairs,
	}
}
