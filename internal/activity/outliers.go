package activity

import (
	"math"
	"sort"

	"github.com/z00rd/sporter/internal/shared/hrstats"
)

const (
	minHRSamplesForDetection = 10
	startupWindowSeconds     = 5 * 60
	minStage2Samples         = 21
	fallbackMADThreshold     = 50.0
)

// DetectHROutliers marks heart-rate samples to exclude from HR aggregates,
// in two passes. Pass one resets the exclusion state of every HR sample:
// within the first five minutes a value above the activity-wide average is
// flagged as hr_startup, everything else is cleared. Pass two flags
// statistical outliers (beyond 3 MAD from the median) among the samples
// pass one left in; it never overwrites an hr_startup reason.
func DetectHROutliers(points []Trackpoint) {
	var hrIdx []int
	for i := range points {
		if points[i].HeartRate != nil {
			hrIdx = append(hrIdx, i)
		}
	}

	if len(hrIdx) < minHRSamplesForDetection {
		return
	}

	sum := 0
	for _, i := range hrIdx {
		sum += *points[i].HeartRate
	}
	overallAvg := float64(sum) / float64(len(hrIdx))

	windowStart := points[hrIdx[0]].RecordedAt
	for _, i := range hrIdx {
		elapsed := points[i].RecordedAt.Sub(windowStart).Seconds()
		if elapsed < startupWindowSeconds && float64(*points[i].HeartRate) > overallAvg {
			reason := hrstats.ReasonStartup
			points[i].ExcludeFromHRAnalysis = true
			points[i].ExclusionReason = &reason
		} else {
			points[i].ExcludeFromHRAnalysis = false
			points[i].ExclusionReason = nil
		}
	}

	var surviving []float64
	for _, i := range hrIdx {
		if !points[i].ExcludeFromHRAnalysis {
			surviving = append(surviving, float64(*points[i].HeartRate))
		}
	}
	if len(surviving) < minStage2Samples {
		return
	}

	medianHR := median(surviving)
	deviations := make([]float64, len(surviving))
	for i, v := range surviving {
		deviations[i] = math.Abs(v - medianHR)
	}
	mad := median(deviations)

	threshold := 3 * mad
	if mad == 0 {
		threshold = fallbackMADThreshold
	}

	for _, i := range hrIdx {
		if points[i].ExcludeFromHRAnalysis {
			continue
		}
		if math.Abs(float64(*points[i].HeartRate)-medianHR) > threshold {
			reason := hrstats.ReasonStatisticalOutlier
			points[i].ExcludeFromHRAnalysis = true
			points[i].ExclusionReason = &reason
		}
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
