// Package hrstats holds the heart-rate exclusion combinator and aggregate
// rules shared by the outlier detector, the exclusion reconciler and the
// chart read path, so every consumer applies exactly the same semantics.
package hrstats

// Exclusion reason codes stored on trackpoints.
const (
	ReasonStartup            = "hr_startup"
	ReasonStatisticalOutlier = "hr_statistical_outlier"
)

// Range is an exclusion time window in seconds from activity start.
// Boundaries are inclusive on both ends.
type Range struct {
	StartSeconds int
	EndSeconds   int
}

// Contains reports whether an elapsed offset falls within the range.
func (r Range) Contains(elapsedSeconds float64) bool {
	return elapsedSeconds >= float64(r.StartSeconds) && elapsedSeconds <= float64(r.EndSeconds)
}

// Excluded combines a point-level exclusion flag with range exclusions: a
// sample is out when its flag is set or its elapsed time falls inside any
// range.
func Excluded(pointExcluded bool, elapsedSeconds float64, ranges []Range) bool {
	if pointExcluded {
		return true
	}
	for _, r := range ranges {
		if r.Contains(elapsedSeconds) {
			return true
		}
	}
	return false
}

// Aggregates are the activity-level heart-rate statistics. Avg, Max and Min
// are nil when no valid sample remains.
type Aggregates struct {
	Avg        *int
	Max        *int
	Min        *int
	ValidCount int
}

// Aggregate computes avg/max/min over the surviving heart-rate values.
func Aggregate(values []int) Aggregates {
	if len(values) == 0 {
		return Aggregates{}
	}

	sum := 0
	max := values[0]
	min := values[0]
	for _, v := range values {
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}

	avg := sum / len(values)
	return Aggregates{Avg: &avg, Max: &max, Min: &min, ValidCount: len(values)}
}
