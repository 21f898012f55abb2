package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/z00rd/sporter/internal/db"
	"github.com/z00rd/sporter/internal/shared/hrstats"
)

var ErrActivityNotFound = errors.New("activity not found")

const cacheTTL = 30 * time.Minute

type ZoneBucket struct {
	Zone
	Samples int     `json:"samples"`
	Percent float64 `json:"percent"`
}

type Distribution struct {
	ActivityID   string       `json:"activity_id"`
	Params       ZoneParams   `json:"params"`
	Zones        []ZoneBucket `json:"zones"`
	TotalSamples int          `json:"total_samples"`
}

type Service struct {
	db    db.Querier
	redis *redis.Client
}

// NewService constructs the analytics service. redis may be nil; results
// are then computed on every request.
func NewService(db db.Querier, redisClient *redis.Client) *Service {
	return &Service{db: db, redis: redisClient}
}

// ZoneDistribution computes time-in-zone over the activity's valid HR
// samples: point-excluded and range-excluded samples are left out via the
// shared hrstats rules. Results are cached per activity.
func (s *Service) ZoneDistribution(ctx context.Context, activityID string) (Distribution, error) {
	if cached, ok := s.cacheGet(ctx, activityID); ok {
		return cached, nil
	}

	var userID string
	var startTime time.Time
	err := s.db.QueryRow(ctx, `
		SELECT user_id, start_time FROM activities WHERE id=$1
	`, activityID).Scan(&userID, &startTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Distribution{}, ErrActivityNotFound
		}
		return Distribution{}, err
	}

	params, err := s.zoneParams(ctx, userID)
	if err != nil {
		return Distribution{}, err
	}
	zones := KarvonenZones(params)

	values, err := s.validHRValues(ctx, activityID, startTime)
	if err != nil {
		return Distribution{}, err
	}

	dist := Distribution{ActivityID: activityID, Params: params, TotalSamples: len(values)}
	counts := make([]int, len(zones))
	for _, hr := range values {
		counts[zoneIndex(zones, hr)]++
	}
	for i, z := range zones {
		bucket := ZoneBucket{Zone: z, Samples: counts[i]}
		if len(values) > 0 {
			bucket.Percent = round1(float64(counts[i]) / float64(len(values)) * 100)
		}
		dist.Zones = append(dist.Zones, bucket)
	}

	s.cacheSet(ctx, activityID, dist)
	return dist, nil
}

// Invalidate drops the cached distribution; called by the exclusion
// service after exclusion state changes.
func (s *Service) Invalidate(ctx context.Context, activityID string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, cacheKey(activityID)).Err()
}

func (s *Service) zoneParams(ctx context.Context, userID string) (ZoneParams, error) {
	params := ZoneParams{HRMax: defaultHRMax, HRResting: defaultHRResting}

	var hrMax, hrResting, birthYear *int
	err := s.db.QueryRow(ctx, `
		SELECT hr_max, hr_resting, birth_year FROM users WHERE id=$1
	`, userID).Scan(&hrMax, &hrResting, &birthYear)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return params, nil
		}
		return ZoneParams{}, err
	}

	if hrResting != nil {
		params.HRResting = *hrResting
	}
	switch {
	case hrMax != nil:
		params.HRMax = *hrMax
	case birthYear != nil:
		params.HRMax = 220 - (time.Now().Year() - *birthYear)
	}
	return params, nil
}

func (s *Service) validHRValues(ctx context.Context, activityID string, startTime time.Time) ([]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT recorded_at, heart_rate, exclude_from_hr_analysis
		FROM trackpoints
		WHERE activity_id=$1 AND heart_rate IS NOT NULL
		ORDER BY point_order
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type hrPoint struct {
		elapsed  float64
		hr       int
		excluded bool
	}
	var points []hrPoint
	for rows.Next() {
		var recordedAt time.Time
		var hr int
		var excluded bool
		if err := rows.Scan(&recordedAt, &hr, &excluded); err != nil {
			return nil, err
		}
		points = append(points, hrPoint{elapsed: recordedAt.Sub(startTime).Seconds(), hr: hr, excluded: excluded})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rangeRows, err := s.db.Query(ctx, `
		SELECT start_time_seconds, end_time_seconds
		FROM exclusion_ranges WHERE activity_id=$1
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rangeRows.Close()

	var ranges []hrstats.Range
	for rangeRows.Next() {
		var r hrstats.Range
		if err := rangeRows.Scan(&r.StartSeconds, &r.EndSeconds); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	if err := rangeRows.Err(); err != nil {
		return nil, err
	}

	var values []int
	for _, p := range points {
		if !hrstats.Excluded(p.excluded, p.elapsed, ranges) {
			values = append(values, p.hr)
		}
	}
	return values, nil
}

func (s *Service) cacheGet(ctx context.Context, activityID string) (Distribution, bool) {
	if s.redis == nil {
		return Distribution{}, false
	}
	payload, err := s.redis.Get(ctx, cacheKey(activityID)).Bytes()
	if err != nil {
		return Distribution{}, false
	}
	var dist Distribution
	if err := json.Unmarshal(payload, &dist); err != nil {
		return Distribution{}, false
	}
	return dist, true
}

func (s *Service) cacheSet(ctx context.Context, activityID string, dist Distribution) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(dist)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, cacheKey(activityID), payload, cacheTTL).Err()
}

func cacheKey(activityID string) string {
	return "hrzones:" + activityID
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
