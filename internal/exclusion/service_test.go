package exclusion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/z00rd/sporter/internal/shared/hrstats"
)

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) Invalidate(_ context.Context, activityID string) error {
	f.invalidated = append(f.invalidated, activityID)
	return nil
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

var seriesStart = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// hrRows builds the trackpoint rows the reconciler reads: one sample per
// (offsetSeconds, hr, excluded) triple.
func hrRows(samples ...[3]int) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"recorded_at", "heart_rate", "exclude_from_hr_analysis"})
	for _, s := range samples {
		hr := s[1]
		rows.AddRow(seriesStart.Add(time.Duration(s[0])*time.Second), &hr, s[2] == 1)
	}
	return rows
}

func expectReconcile(mock pgxmock.PgxPoolIface, activityID string, points *pgxmock.Rows, ranges *pgxmock.Rows, avg, max, min *int, count int) {
	mock.ExpectQuery(`SELECT start_time FROM activities`).
		WithArgs(activityID).
		WillReturnRows(pgxmock.NewRows([]string{"start_time"}).AddRow(seriesStart))
	mock.ExpectQuery(`SELECT recorded_at, heart_rate, exclude_from_hr_analysis`).
		WithArgs(activityID).
		WillReturnRows(points)
	mock.ExpectQuery(`FROM exclusion_ranges`).
		WithArgs(activityID).
		WillReturnRows(ranges)
	mock.ExpectExec(`UPDATE activities`).
		WithArgs(activityID, avg, max, min, count).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func rangeRows(ranges ...[2]int) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"start_time_seconds", "end_time_seconds"})
	for _, r := range ranges {
		rows.AddRow(r[0], r[1])
	}
	return rows
}

func intp(v int) *int { return &v }

func TestCreateRangeExcludesBoundariesInclusive(t *testing.T) {
	mock := newMock(t)
	cache := &fakeCache{}
	svc := NewService(mock, cache)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exclusion_ranges`).
		WithArgs(pgxmock.AnyArg(), "act-1", 100, 200, (*string)(nil), TypeUserRange).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	// samples at 0s, 100s, 200s and 300s: the 100s and 200s boundary
	// samples fall inside the [100,200] window.
	expectReconcile(mock, "act-1",
		hrRows([3]int{0, 150, 0}, [3]int{100, 160, 0}, [3]int{200, 170, 0}, [3]int{300, 180, 0}),
		rangeRows([2]int{100, 200}),
		intp(165), intp(180), intp(150), 2)
	mock.ExpectCommit()

	r, err := svc.CreateRange(context.Background(), "act-1", 100, 200, "")
	if err != nil {
		t.Fatalf("create range: %v", err)
	}
	if r.Type != TypeUserRange || r.StartSeconds != 100 || r.EndSeconds != 200 {
		t.Fatalf("unexpected range %+v", r)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "act-1" {
		t.Fatalf("expected cache invalidation, got %v", cache.invalidated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRangeTruncatesReason(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	longReason := ""
	for i := 0; i < 120; i++ {
		longReason += "x"
	}
	truncated := longReason[:maxReasonLen]

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exclusion_ranges`).
		WithArgs(pgxmock.AnyArg(), "act-1", 0, 60, &truncated, TypeUserRange).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	expectReconcile(mock, "act-1",
		hrRows([3]int{120, 150, 0}),
		rangeRows([2]int{0, 60}),
		intp(150), intp(150), intp(150), 1)
	mock.ExpectCommit()

	r, err := svc.CreateRange(context.Background(), "act-1", 0, 60, longReason)
	if err != nil {
		t.Fatalf("create range: %v", err)
	}
	if r.Reason == nil || len(*r.Reason) != maxReasonLen {
		t.Fatalf("expected reason truncated to %d chars", maxReasonLen)
	}
}

func TestCreateRangeInvalid(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	cases := [][2]int{{100, 100}, {200, 100}, {-1, 100}}
	for _, c := range cases {
		if _, err := svc.CreateRange(context.Background(), "act-1", c[0], c[1], ""); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("range [%d,%d]: expected ErrInvalidRange, got %v", c[0], c[1], err)
		}
	}
}

func TestCreateRangeDuplicate(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exclusion_ranges`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := svc.CreateRange(context.Background(), "act-1", 100, 200, "")
	if !errors.Is(err, ErrDuplicateRange) {
		t.Fatalf("expected ErrDuplicateRange, got %v", err)
	}
}

func TestCreateRangeActivityMissing(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO exclusion_ranges`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := svc.CreateRange(context.Background(), "missing", 100, 200, "")
	if !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
}

func TestDeleteRangeRestoresSamples(t *testing.T) {
	mock := newMock(t)
	cache := &fakeCache{}
	svc := NewService(mock, cache)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT exclusion_type FROM exclusion_ranges`).
		WithArgs("range-1", "act-1").
		WillReturnRows(pgxmock.NewRows([]string{"exclusion_type"}).AddRow(TypeUserRange))
	mock.ExpectExec(`DELETE FROM exclusion_ranges`).
		WithArgs("range-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	// with the range gone every sample counts again
	expectReconcile(mock, "act-1",
		hrRows([3]int{0, 150, 0}, [3]int{100, 160, 0}, [3]int{200, 170, 0}, [3]int{300, 180, 0}),
		rangeRows(),
		intp(165), intp(180), intp(150), 4)
	mock.ExpectCommit()

	if err := svc.DeleteRange(context.Background(), "act-1", "range-1"); err != nil {
		t.Fatalf("delete range: %v", err)
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected cache invalidation")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRangeNotFound(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT exclusion_type FROM exclusion_ranges`).
		WithArgs("missing", "act-1").
		WillReturnError(pgx.ErrNoRows)

	if err := svc.DeleteRange(context.Background(), "act-1", "missing"); !errors.Is(err, ErrRangeNotFound) {
		t.Fatalf("expected ErrRangeNotFound, got %v", err)
	}
}

func TestDeleteRangeRejectsNonUserRange(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT exclusion_type FROM exclusion_ranges`).
		WithArgs("range-1", "act-1").
		WillReturnRows(pgxmock.NewRows([]string{"exclusion_type"}).AddRow("auto"))

	if err := svc.DeleteRange(context.Background(), "act-1", "range-1"); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("expected ErrNotDeletable, got %v", err)
	}
}

func TestListRanges(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	reason := "forgot to stop the watch"
	mock.ExpectQuery(`FROM exclusion_ranges WHERE activity_id`).
		WithArgs("act-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "activity_id", "start_time_seconds", "end_time_seconds", "reason", "exclusion_type", "created_at"}).
			AddRow("range-1", "act-1", 100, 200, &reason, TypeUserRange, time.Now()))

	ranges, err := svc.ListRanges(context.Background(), "act-1")
	if err != nil {
		t.Fatalf("list ranges: %v", err)
	}
	if len(ranges) != 1 || ranges[0].Reason == nil || *ranges[0].Reason != reason {
		t.Fatalf("unexpected ranges %+v", ranges)
	}
}

func TestReapplyRerunsDetection(t *testing.T) {
	mock := newMock(t)
	cache := &fakeCache{}
	svc := NewService(mock, cache)

	// 30 HR samples 10s apart: five elevated startup values among a
	// steady 150 baseline.
	values := make([]int, 30)
	for i := range values {
		values[i] = 150
	}
	for i := 5; i < 10; i++ {
		values[i] = 200
	}

	detectRows := pgxmock.NewRows([]string{"id", "recorded_at", "heart_rate"})
	var flaggedIDs []int64
	reconcileSamples := make([][3]int, 30)
	for i, v := range values {
		hr := v
		detectRows.AddRow(int64(i+1), seriesStart.Add(time.Duration(i*10)*time.Second), &hr)
		excluded := 0
		if v == 200 {
			excluded = 1
			flaggedIDs = append(flaggedIDs, int64(i+1))
		}
		reconcileSamples[i] = [3]int{i * 10, v, excluded}
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM activities`).
		WithArgs("act-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("act-1"))
	mock.ExpectExec(`UPDATE trackpoints SET exclude_from_hr_analysis=false`).
		WithArgs("act-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 30))
	mock.ExpectQuery(`SELECT id, recorded_at, heart_rate`).
		WithArgs("act-1").
		WillReturnRows(detectRows)
	mock.ExpectExec(`UPDATE trackpoints SET exclude_from_hr_analysis=true`).
		WithArgs(flaggedIDs, hrstats.ReasonStartup).
		WillReturnResult(pgxmock.NewResult("UPDATE", int64(len(flaggedIDs))))
	expectReconcile(mock, "act-1",
		hrRows(reconcileSamples...),
		rangeRows(),
		intp(150), intp(150), intp(150), 25)
	mock.ExpectCommit()

	if err := svc.Reapply(context.Background(), "act-1"); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected cache invalidation")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReapplyActivityMissing(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM activities`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if err := svc.Reapply(context.Background(), "missing"); !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
}

func TestClearDropsFlagsWithoutRecompute(t *testing.T) {
	mock := newMock(t)
	cache := &fakeCache{}
	svc := NewService(mock, cache)

	mock.ExpectQuery(`SELECT id FROM activities`).
		WithArgs("act-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("act-1"))
	mock.ExpectExec(`UPDATE trackpoints SET exclude_from_hr_analysis=false`).
		WithArgs("act-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 12))

	if err := svc.Clear(context.Background(), "act-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClearActivityMissing(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectQuery(`SELECT id FROM activities`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if err := svc.Clear(context.Background(), "missing"); !errors.Is(err, ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		expectReconcile(mock, "act-1",
			hrRows([3]int{0, 150, 0}, [3]int{100, 160, 1}, [3]int{200, 170, 0}),
			rangeRows(),
			intp(160), intp(170), intp(150), 2)
		mock.ExpectCommit()
	}

	for i := 0; i < 2; i++ {
		if err := svc.Reconcile(context.Background(), "act-1"); err != nil {
			t.Fatalf("reconcile run %d: %v", i+1, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReconcileZeroSurvivorsWritesNullAggregates(t *testing.T) {
	mock := newMock(t)
	svc := NewService(mock, nil)

	mock.ExpectBegin()
	expectReconcile(mock, "act-1",
		hrRows([3]int{0, 150, 1}, [3]int{100, 160, 1}),
		rangeRows(),
		nil, nil, nil, 0)
	mock.ExpectCommit()

	if err := svc.Reconcile(context.Background(), "act-1"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
