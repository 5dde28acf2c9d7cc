package domain

import "time"

// ImputationMethod selects how missing values are filled.
type ImputationMethod string

const (
	ImputeForward     ImputationMethod = "forward"
	ImputeBackward    ImputationMethod = "backward"
	ImputeInterpolate ImputationMethod = "interpolate"
	ImputeMean        ImputationMethod = "mean"
	ImputeMedian      ImputationMethod = "median"
	ImputeHybrid      ImputationMethod = "hybrid"
)

// IsValid reports whether m names a known imputation method.
func (m ImputationMethod) IsValid() bool {
	switch m {
	case ImputeForward, ImputeBackward, ImputeInterpolate, ImputeMean, ImputeMedian, ImputeHybrid:
		return true
	}
	return false
}

// OutlierMethod selects how outliers are detected.
type OutlierMethod string

const (
	OutlierZScore   OutlierMethod = "zscore"
	OutlierIQR      OutlierMethod = "iqr"
	OutlierDomain   OutlierMethod = "domain"
	OutlierCombined OutlierMethod = "combined"
)

// IsValid reports whether m names a known outlier detection method.
func (m OutlierMethod) IsValid() bool {
	switch m {
	case OutlierZScore, OutlierIQR, OutlierDomain, OutlierCombined:
		return true
	}
	return false
}

// OutlierAction selects what to do with detected outliers.
type OutlierAction string

const (
	ActionCap         OutlierAction = "cap"
	ActionRemove      OutlierAction = "remove"
	ActionFlag        OutlierAction = "flag"
	ActionInterpolate OutlierAction = "interpolate"
)

// IsValid reports whether a names a known outlier action.
func (a OutlierAction) IsValid() bool {
	switch a {
	case ActionCap, ActionRemove, ActionFlag, ActionInterpolate:
		return true
	}
	return false
}

// Bounds is a closed physical plausibility interval for one parameter.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies inside the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// AnomalySeverity grades a temporal anomaly by its distance from the
// rolling mean.
type AnomalySeverity string

const (
	SeverityMedium AnomalySeverity = "medium"
	SeverityHigh   AnomalySeverity = "high"
)

// TemporalAnomaly describes one value that departs sharply from its
// recent rolling statistics.
type TemporalAnomaly struct {
	Index     int             `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
	Parameter Parameter       `json:"parameter"`
	Value     float64         `json:"value"`
	Mean      float64         `json:"rolling_mean"`
	Sigmas    float64         `json:"sigmas"`
	Severity  AnomalySeverity `json:"severity"`
}

// QualitySnapshot captures dataset quality at one point in the pipeline.
// Completeness is 100 minus the mean missing percentage across measurement
// columns; Consistency is the percentage of rows with pm25 <= pm10.
type QualitySnapshot struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
}

// CleaningReport summarises everything a cleaning run changed. It is
// produced per run and never persisted by the engine itself.
type CleaningReport struct {
	City                      string                `json:"city"`
	Rows                      int                   `json:"rows"`
	ImputedCount              int                   `json:"imputed_count"`
	ImputedByParameter        map[Parameter]int     `json:"imputed_by_parameter,omitempty"`
	OutliersByMethod          map[OutlierMethod]int `json:"outliers_by_method,omitempty"`
	OutliersHandled           int                   `json:"outliers_handled"`
	ConstraintViolationsFixed int                   `json:"constraint_violations_fixed"`
	RegularizedRows           int                   `json:"regularized_rows"`
	DroppedRows               int                   `json:"dropped_rows"`
	FlaggedOutliers           map[Parameter][]int   `json:"flagged_outliers,omitempty"`
	Anomalies                 []TemporalAnomaly     `json:"anomalies,omitempty"`
	Before                    QualitySnapshot       `json:"before"`
	After                     QualitySnapshot       `json:"after"`
	CompletenessScore         float64               `json:"completeness_score"`
	ConsistencyScore          float64               `json:"consistency_score"`
}

// AnomalyCountBySeverity tallies detected anomalies per severity grade.
func (r *CleaningReport) AnomalyCountBySeverity() map[AnomalySeverity]int {
	counts := make(map[AnomalySeverity]int)
	for _, a := range r.Anomalies {
		counts[a.Severity]++
	}
	return counts
}

// ConsistencyReport summarises cross-source agreement for one city's raw
// multi-provider observations.
type ConsistencyReport struct {
	City           string  `json:"city"`
	GroupsChecked  int     `json:"groups_checked"`
	FlaggedCV      int     `json:"flagged_cv"`
	FlaggedAQIDiff int     `json:"flagged_aqi_diff"`
	Flagged        int     `json:"flagged"`
	MalformedRows  int     `json:"malformed_rows"`
	AgreementScore float64 `json:"agreement_score"`
}
