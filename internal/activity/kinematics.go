package activity

import (
	"errors"
	"math"

	"github.com/z00rd/sporter/internal/shared/geo"
)

// ErrOutOfOrderPoints is returned when a trackpoint is timestamped before
// its predecessor. Ordering is the caller's responsibility; we fail instead
// of silently reshuffling.
var ErrOutOfOrderPoints = errors.New("trackpoints are not in chronological order")

type kinematicTotals struct {
	DistanceKM float64
	AvgSpeedMS *float64
	MaxSpeedMS *float64
}

// deriveKinematics fills per-point distance, time gap and speed in place and
// returns the activity-level totals. The first point carries no derived
// values. Speed stays nil when either the time gap or the distance is zero:
// absent is not the same as zero.
func deriveKinematics(points []Trackpoint) (kinematicTotals, error) {
	var totals kinematicTotals
	var speeds []float64
	totalDistance := 0.0

	for i := 1; i < len(points); i++ {
		prev := &points[i-1]
		curr := &points[i]

		distance := geo.HaversineM(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
		rounded := round3(distance)
		curr.DistanceFromPrevM = &rounded
		totalDistance += distance

		gap := int(curr.RecordedAt.Sub(prev.RecordedAt).Seconds())
		if gap < 0 {
			return kinematicTotals{}, ErrOutOfOrderPoints
		}
		gapCopy := gap
		curr.TimeGapSeconds = &gapCopy

		if gap > 0 && distance > 0 {
			speed := distance / float64(gap)
			speedRounded := round3(speed)
			curr.SpeedMS = &speedRounded
			speeds = append(speeds, speed)
		}
	}

	totals.DistanceKM = round3(totalDistance / 1000)

	if len(speeds) > 0 {
		sum := 0.0
		max := speeds[0]
		for _, s := range speeds {
			sum += s
			if s > max {
				max = s
			}
		}
		avg := round3(sum / float64(len(speeds)))
		maxRounded := round3(max)
		totals.AvgSpeedMS = &avg
		totals.MaxSpeedMS = &maxRounded
	}

	return totals, nil
}

// round3 keeps stored metrics at the fixed 3-decimal precision of the
// numeric columns.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
