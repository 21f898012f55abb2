package exclusion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/z00rd/sporter/internal/activity"
	"github.com/z00rd/sporter/internal/db"
	"github.com/z00rd/sporter/internal/shared/hrstats"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrRangeNotFound    = errors.New("exclusion range not found")
	ErrDuplicateRange   = errors.New("identical exclusion range already exists")
	ErrInvalidRange     = errors.New("exclusion range start must be before end")
	ErrNotDeletable     = errors.New("only user ranges can be deleted")
)

// Invalidator drops cached analytics for an activity after its exclusion
// state changed.
type Invalidator interface {
	Invalidate(ctx context.Context, activityID string) error
}

type Service struct {
	db    db.Querier
	cache Invalidator
}

// NewService constructs the exclusion service. cache may be nil.
func NewService(db db.Querier, cache Invalidator) *Service {
	return &Service{db: db, cache: cache}
}

// CreateRange inserts a user exclusion window and reconciles the activity's
// HR aggregates in the same transaction.
func (s *Service) CreateRange(ctx context.Context, activityID string, startSeconds, endSeconds int, reason string) (Range, error) {
	if startSeconds < 0 || startSeconds >= endSeconds {
		return Range{}, ErrInvalidRange
	}

	r := Range{
		ID:           uuid.NewString(),
		ActivityID:   activityID,
		StartSeconds: startSeconds,
		EndSeconds:   endSeconds,
		Type:         TypeUserRange,
	}
	if reason != "" {
		if len(reason) > maxReasonLen {
			reason = reason[:maxReasonLen]
		}
		r.Reason = &reason
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Range{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO exclusion_ranges (id, activity_id, start_time_seconds, end_time_seconds, reason, exclusion_type)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, r.ID, r.ActivityID, r.StartSeconds, r.EndSeconds, r.Reason, r.Type)
	if err := row.Scan(&r.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return Range{}, ErrDuplicateRange
			case "23503":
				return Range{}, ErrActivityNotFound
			}
		}
		return Range{}, err
	}

	if err := reconcileTx(ctx, tx, activityID); err != nil {
		return Range{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Range{}, err
	}

	s.invalidate(ctx, activityID)
	return r, nil
}

// DeleteRange removes a user range and reconciles, returning previously
// range-excluded samples to the valid set.
func (s *Service) DeleteRange(ctx context.Context, activityID, rangeID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exclusionType string
	err = tx.QueryRow(ctx, `
		SELECT exclusion_type FROM exclusion_ranges WHERE id=$1 AND activity_id=$2
	`, rangeID, activityID).Scan(&exclusionType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRangeNotFound
		}
		return err
	}
	if exclusionType != TypeUserRange {
		return ErrNotDeletable
	}

	if _, err := tx.Exec(ctx, `DELETE FROM exclusion_ranges WHERE id=$1`, rangeID); err != nil {
		return err
	}

	if err := reconcileTx(ctx, tx, activityID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.invalidate(ctx, activityID)
	return nil
}

func (s *Service) ListRanges(ctx context.Context, activityID string) ([]Range, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, activity_id, start_time_seconds, end_time_seconds, reason, exclusion_type, created_at
		FROM exclusion_ranges WHERE activity_id=$1
		ORDER BY start_time_seconds
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges []Range
	for rows.Next() {
		var r Range
		if err := rows.Scan(&r.ID, &r.ActivityID, &r.StartSeconds, &r.EndSeconds, &r.Reason, &r.Type, &r.CreatedAt); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

// Reapply clears all point-level exclusions, reruns the outlier detector
// and reconciles, all in one transaction.
func (s *Service) Reapply(ctx context.Context, activityID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := ensureActivityTx(ctx, tx, activityID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE trackpoints SET exclude_from_hr_analysis=false, exclusion_reason=NULL
		WHERE activity_id=$1
	`, activityID); err != nil {
		return err
	}

	points, err := fetchHRPointsTx(ctx, tx, activityID)
	if err != nil {
		return err
	}
	activity.DetectHROutliers(points)

	byReason := map[string][]int64{}
	for _, p := range points {
		if p.ExcludeFromHRAnalysis && p.ExclusionReason != nil {
			byReason[*p.ExclusionReason] = append(byReason[*p.ExclusionReason], p.ID)
		}
	}
	for reason, ids := range byReason {
		if _, err := tx.Exec(ctx, `
			UPDATE trackpoints SET exclude_from_hr_analysis=true, exclusion_reason=$2
			WHERE id = ANY($1)
		`, ids, reason); err != nil {
			return err
		}
	}

	if err := reconcileTx(ctx, tx, activityID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.invalidate(ctx, activityID)
	return nil
}

// Clear removes all point-level exclusion flags and reason codes. It does
// not touch exclusion ranges and does not recompute aggregates; callers
// refresh those with a reapply or a range edit.
func (s *Service) Clear(ctx context.Context, activityID string) error {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM activities WHERE id=$1`, activityID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrActivityNotFound
		}
		return err
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE trackpoints SET exclude_from_hr_analysis=false, exclusion_reason=NULL
		WHERE activity_id=$1
	`, activityID); err != nil {
		return err
	}

	s.invalidate(ctx, activityID)
	return nil
}

// Reconcile recomputes the activity's HR aggregates from current point
// flags and exclusion ranges. Idempotent: rerunning it with unchanged
// inputs writes the same values.
func (s *Service) Reconcile(ctx context.Context, activityID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := reconcileTx(ctx, tx, activityID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.invalidate(ctx, activityID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, activityID string) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, activityID)
	}
}

func ensureActivityTx(ctx context.Context, tx pgx.Tx, activityID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM activities WHERE id=$1`, activityID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrActivityNotFound
	}
	return err
}

func fetchHRPointsTx(ctx context.Context, tx pgx.Tx, activityID string) ([]activity.Trackpoint, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, recorded_at, heart_rate
		FROM trackpoints
		WHERE activity_id=$1 AND heart_rate IS NOT NULL
		ORDER BY point_order
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []activity.Trackpoint
	for rows.Next() {
		var p activity.Trackpoint
		if err := rows.Scan(&p.ID, &p.RecordedAt, &p.HeartRate); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// reconcileTx recomputes the stored HR aggregates: a sample is excluded
// when its point flag is set or its offset from activity start falls
// inside any range, boundaries inclusive.
func reconcileTx(ctx context.Context, tx pgx.Tx, activityID string) error {
	var startTime time.Time
	err := tx.QueryRow(ctx, `SELECT start_time FROM activities WHERE id=$1`, activityID).Scan(&startTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrActivityNotFound
		}
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT recorded_at, heart_rate, exclude_from_hr_analysis
		FROM trackpoints
		WHERE activity_id=$1 AND heart_rate IS NOT NULL
		ORDER BY point_order
	`, activityID)
	if err != nil {
		return err
	}

	type hrPoint struct {
		elapsed  float64
		hr       int
		excluded bool
	}
	var points []hrPoint
	for rows.Next() {
		var p activity.Trackpoint
		if err := rows.Scan(&p.RecordedAt, &p.HeartRate, &p.ExcludeFromHRAnalysis); err != nil {
			rows.Close()
			return err
		}
		points = append(points, hrPoint{
			elapsed:  p.RecordedAt.Sub(startTime).Seconds(),
			hr:       *p.HeartRate,
			excluded: p.ExcludeFromHRAnalysis,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rangeRows, err := tx.Query(ctx, `
		SELECT start_time_seconds, end_time_seconds
		FROM exclusion_ranges WHERE activity_id=$1
	`, activityID)
	if err != nil {
		return err
	}
	var ranges []hrstats.Range
	for rangeRows.Next() {
		var r hrstats.Range
		if err := rangeRows.Scan(&r.StartSeconds, &r.EndSeconds); err != nil {
			rangeRows.Close()
			return err
		}
		ranges = append(ranges, r)
	}
	rangeRows.Close()
	if err := rangeRows.Err(); err != nil {
		return err
	}

	var surviving []int
	for _, p := range points {
		if !hrstats.Excluded(p.excluded, p.elapsed, ranges) {
			surviving = append(surviving, p.hr)
		}
	}
	agg := hrstats.Aggregate(surviving)

	_, err = tx.Exec(ctx, `
		UPDATE activities
		SET avg_heart_rate=$2, max_heart_rate=$3, min_heart_rate=$4, valid_hr_trackpoints=$5, updated_at=now()
		WHERE id=$1
	`, activityID, agg.Avg, agg.Max, agg.Min, agg.ValidCount)
	return err
}
