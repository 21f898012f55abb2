package activity

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/z00rd/sporter/internal/config"
	"github.com/z00rd/sporter/internal/db"
	"github.com/z00rd/sporter/internal/gpx"
	"github.com/z00rd/sporter/internal/shared/hrstats"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrDuplicateFile    = errors.New("gpx file already imported")
)

var removeFileFn = os.Remove

type Service struct {
	db  db.Querier
	cfg config.Config
}

func NewService(db db.Querier, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// Import ingests a stored GPX file for a user: duplicate check, parse,
// classify, derive kinematics, detect HR outliers, then persist the
// activity with all trackpoints in one transaction. Any failure leaves
// nothing behind; removing the file afterwards is the caller's job.
func (s *Service) Import(ctx context.Context, path, userID string) (Activity, error) {
	if err := s.checkDuplicate(ctx, path, userID); err != nil {
		return Activity{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Activity{}, err
	}
	parsed, err := gpx.Parse(f, path)
	f.Close()
	if err != nil {
		return Activity{}, err
	}

	points := make([]Trackpoint, len(parsed.Samples))
	for i, sample := range parsed.Samples {
		points[i] = Trackpoint{
			PointOrder: sample.PointOrder,
			Longitude:  sample.Longitude,
			Latitude:   sample.Latitude,
			Elevation:  sample.Elevation,
			RecordedAt: sample.RecordedAt,
			HeartRate:  sample.HeartRate,
		}
	}

	totals, err := deriveKinematics(points)
	if err != nil {
		return Activity{}, err
	}
	DetectHROutliers(points)
	agg := hrstats.Aggregate(validHRValues(points))

	start := points[0].RecordedAt
	end := points[len(points)-1].RecordedAt

	act := Activity{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Name:               parsed.Name,
		ActivityType:       gpx.Classify(parsed.TypeHint, parsed.Name, path, s.cfg.DefaultActivityType),
		StartTime:          start,
		DurationSeconds:    int(end.Sub(start).Seconds()),
		DistanceKM:         totals.DistanceKM,
		AvgSpeedMS:         totals.AvgSpeedMS,
		MaxSpeedMS:         totals.MaxSpeedMS,
		AvgHeartRate:       agg.Avg,
		MaxHeartRate:       agg.Max,
		MinHeartRate:       agg.Min,
		GPXFilePath:        path,
		TotalTrackpoints:   len(points),
		ValidHRTrackpoints: agg.ValidCount,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Activity{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO activities (id, user_id, name, activity_type, start_time, duration_seconds,
			distance_km, avg_speed_ms, max_speed_ms, avg_heart_rate, max_heart_rate, min_heart_rate,
			gpx_file_path, total_trackpoints, valid_hr_trackpoints)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at
	`, act.ID, act.UserID, act.Name, act.ActivityType, act.StartTime, act.DurationSeconds,
		act.DistanceKM, act.AvgSpeedMS, act.MaxSpeedMS, act.AvgHeartRate, act.MaxHeartRate, act.MinHeartRate,
		act.GPXFilePath, act.TotalTrackpoints, act.ValidHRTrackpoints)
	if err := row.Scan(&act.CreatedAt, &act.UpdatedAt); err != nil {
		return Activity{}, err
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{
			act.ID, p.PointOrder, p.Longitude, p.Latitude, p.Elevation, p.RecordedAt,
			p.HeartRate, p.DistanceFromPrevM, p.TimeGapSeconds, p.SpeedMS,
			p.ExcludeFromHRAnalysis, p.ExclusionReason,
		}
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"trackpoints"}, []string{
		"activity_id", "point_order", "longitude", "latitude", "elevation", "recorded_at",
		"heart_rate", "distance_from_previous_m", "time_gap_seconds", "speed_ms",
		"exclude_from_hr_analysis", "exclusion_reason",
	}, pgx.CopyFromRows(rows))
	if err != nil {
		return Activity{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Activity{}, err
	}
	return act, nil
}

// checkDuplicate reports ErrDuplicateFile when the user already imported an
// activity from this stored path. The upload handler runs it before writing
// anything to disk; Import runs it again to keep the fail-fast contract for
// direct callers.
func (s *Service) checkDuplicate(ctx context.Context, path, userID string) error {
	var existingID string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM activities WHERE user_id=$1 AND gpx_file_path=$2
	`, userID, path).Scan(&existingID)
	if err == nil {
		return fmt.Errorf("%w: activity %s", ErrDuplicateFile, existingID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

func validHRValues(points []Trackpoint) []int {
	var values []int
	for _, p := range points {
		if p.HeartRate != nil && !p.ExcludeFromHRAnalysis {
			values = append(values, *p.HeartRate)
		}
	}
	return values
}

func (s *Service) List(ctx context.Context) ([]Activity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, name, activity_type, start_time, duration_seconds, distance_km,
			avg_speed_ms, max_speed_ms, avg_heart_rate, max_heart_rate, min_heart_rate,
			gpx_file_path, total_trackpoints, valid_hr_trackpoints, created_at, updated_at
		FROM activities
		ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := scanActivity(rows, &a); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *Service) Get(ctx context.Context, id string) (Activity, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, activity_type, start_time, duration_seconds, distance_km,
			avg_speed_ms, max_speed_ms, avg_heart_rate, max_heart_rate, min_heart_rate,
			gpx_file_path, total_trackpoints, valid_hr_trackpoints, created_at, updated_at
		FROM activities WHERE id=$1
	`, id)

	var a Activity
	if err := scanActivity(row, &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Activity{}, ErrActivityNotFound
		}
		return Activity{}, err
	}
	return a, nil
}

func scanActivity(row pgx.Row, a *Activity) error {
	return row.Scan(&a.ID, &a.UserID, &a.Name, &a.ActivityType, &a.StartTime, &a.DurationSeconds,
		&a.DistanceKM, &a.AvgSpeedMS, &a.MaxSpeedMS, &a.AvgHeartRate, &a.MaxHeartRate, &a.MinHeartRate,
		&a.GPXFilePath, &a.TotalTrackpoints, &a.ValidHRTrackpoints, &a.CreatedAt, &a.UpdatedAt)
}

// Delete removes the activity; trackpoints and exclusion ranges go with it
// via ON DELETE CASCADE. The stored GPX file is unlinked best-effort.
func (s *Service) Delete(ctx context.Context, id string) error {
	var gpxPath string
	err := s.db.QueryRow(ctx, `SELECT gpx_file_path FROM activities WHERE id=$1`, id).Scan(&gpxPath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrActivityNotFound
		}
		return err
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM activities WHERE id=$1`, id); err != nil {
		return err
	}

	if gpxPath != "" {
		_ = removeFileFn(gpxPath)
	}
	return nil
}

func (s *Service) Trackpoints(ctx context.Context, activityID string, limit int) ([]Trackpoint, error) {
	if _, err := s.Get(ctx, activityID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, activity_id, point_order, longitude, latitude, elevation, recorded_at,
			heart_rate, distance_from_previous_m, time_gap_seconds, speed_ms,
			exclude_from_hr_analysis, exclusion_reason
		FROM trackpoints WHERE activity_id=$1
		ORDER BY point_order`
	args := []any{activityID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []Trackpoint
	for rows.Next() {
		var p Trackpoint
		if err := rows.Scan(&p.ID, &p.ActivityID, &p.PointOrder, &p.Longitude, &p.Latitude,
			&p.Elevation, &p.RecordedAt, &p.HeartRate, &p.DistanceFromPrevM, &p.TimeGapSeconds,
			&p.SpeedMS, &p.ExcludeFromHRAnalysis, &p.ExclusionReason); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// HeartRateSeries returns the chart payload. Point flags and exclusion
// ranges are combined through the same hrstats rules the reconciler uses.
func (s *Service) HeartRateSeries(ctx context.Context, activityID string) (HRSeries, error) {
	act, err := s.Get(ctx, activityID)
	if err != nil {
		return HRSeries{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT point_order, recorded_at, heart_rate, exclude_from_hr_analysis, exclusion_reason
		FROM trackpoints
		WHERE activity_id=$1 AND heart_rate IS NOT NULL
		ORDER BY point_order
	`, activityID)
	if err != nil {
		return HRSeries{}, err
	}
	defer rows.Close()

	type hrPoint struct {
		order    int
		elapsed  float64
		hr       int
		excluded bool
		reason   *string
	}
	var hrPoints []hrPoint
	for rows.Next() {
		var p Trackpoint
		if err := rows.Scan(&p.PointOrder, &p.RecordedAt, &p.HeartRate, &p.ExcludeFromHRAnalysis, &p.ExclusionReason); err != nil {
			return HRSeries{}, err
		}
		hrPoints = append(hrPoints, hrPoint{
			order:    p.PointOrder,
			elapsed:  p.RecordedAt.Sub(act.StartTime).Seconds(),
			hr:       *p.HeartRate,
			excluded: p.ExcludeFromHRAnalysis,
			reason:   p.ExclusionReason,
		})
	}
	if err := rows.Err(); err != nil {
		return HRSeries{}, err
	}

	ranges, err := fetchRanges(ctx, s.db, activityID)
	if err != nil {
		return HRSeries{}, err
	}

	series := HRSeries{
		ActivityID:  activityID,
		TotalPoints: len(hrPoints),
		Stats: HRSeriesStats{
			AvgHR:         act.AvgHeartRate,
			MaxHR:         act.MaxHeartRate,
			MinHR:         act.MinHeartRate,
			ValidHRPoints: act.ValidHRTrackpoints,
			TotalHRPoints: len(hrPoints),
			Breakdown: map[string]int{
				hrstats.ReasonStartup:            0,
				hrstats.ReasonStatisticalOutlier: 0,
				"other":                          0,
			},
		},
	}

	for _, p := range hrPoints {
		excluded := hrstats.Excluded(p.excluded, p.elapsed, ranges)
		series.Data = append(series.Data, HRSeriesPoint{
			TimeSeconds:     p.elapsed,
			HeartRate:       p.hr,
			PointOrder:      p.order,
			Excluded:        excluded,
			ExclusionReason: p.reason,
		})
		if !excluded {
			continue
		}
		series.Stats.ExcludedPoints++
		switch {
		case p.reason != nil && *p.reason == hrstats.ReasonStartup:
			series.Stats.Breakdown[hrstats.ReasonStartup]++
		case p.reason != nil && *p.reason == hrstats.ReasonStatisticalOutlier:
			series.Stats.Breakdown[hrstats.ReasonStatisticalOutlier]++
		default:
			series.Stats.Breakdown["other"]++
		}
	}

	return series, nil
}

func (s *Service) ElevationProfile(ctx context.Context, activityID string) (ElevationProfile, error) {
	act, err := s.Get(ctx, activityID)
	if err != nil {
		return ElevationProfile{}, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT point_order, elevation, distance_from_previous_m
		FROM trackpoints
		WHERE activity_id=$1 AND elevation IS NOT NULL
		ORDER BY point_order
	`, activityID)
	if err != nil {
		return ElevationProfile{}, err
	}
	defer rows.Close()

	profile := ElevationProfile{ActivityID: activityID, TotalDistanceKM: act.DistanceKM}
	cumulative := 0.0
	first := true
	for rows.Next() {
		var order int
		var elevation float64
		var distance *float64
		if err := rows.Scan(&order, &elevation, &distance); err != nil {
			return ElevationProfile{}, err
		}
		if !first && distance != nil {
			cumulative += *distance
		}
		first = false
		profile.Data = append(profile.Data, ElevationPoint{
			DistanceKM: round3(cumulative / 1000),
			ElevationM: elevation,
			PointOrder: order,
		})
	}
	if err := rows.Err(); err != nil {
		return ElevationProfile{}, err
	}
	profile.TotalPoints = len(profile.Data)
	return profile, nil
}

// fetchRanges loads the exclusion windows for an activity. Shared with the
// heart-rate read path; the exclusion package owns writes to this table.
func fetchRanges(ctx context.Context, q db.Querier, activityID string) ([]hrstats.Range, error) {
	rows, err := q.Query(ctx, `
		SELECT start_time_seconds, end_time_seconds
		FROM exclusion_ranges WHERE activity_id=$1
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []hrstats.Range
	for rows.Next() {
		var r hrstats.Range
		if err := rows.Scan(&r.StartSeconds, &r.EndSeconds); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}
