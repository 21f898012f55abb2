package activity

import "time"

type Activity struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	ActivityType       string     `json:"activity_type"`
	StartTime          time.Time  `json:"start_time"`
	DurationSeconds    int        `json:"duration_seconds"`
	DistanceKM         float64    `json:"distance_km"`
	AvgSpeedMS         *float64   `json:"avg_speed_ms,omitempty"`
	MaxSpeedMS         *float64   `json:"max_speed_ms,omitempty"`
	AvgHeartRate       *int       `json:"avg_heart_rate,omitempty"`
	MaxHeartRate       *int       `json:"max_heart_rate,omitempty"`
	MinHeartRate       *int       `json:"min_heart_rate,omitempty"`
	GPXFilePath        string     `json:"gpx_file_path"`
	TotalTrackpoints   int        `json:"total_trackpoints"`
	ValidHRTrackpoints int        `json:"valid_hr_trackpoints"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type Trackpoint struct {
	ID                    int64     `json:"id"`
	ActivityID            string    `json:"activity_id"`
	PointOrder            int       `json:"point_order"`
	Longitude             float64   `json:"longitude"`
	Latitude              float64   `json:"latitude"`
	Elevation             *float64  `json:"elevation,omitempty"`
	RecordedAt            time.Time `json:"recorded_at"`
	HeartRate             *int      `json:"heart_rate,omitempty"`
	DistanceFromPrevM     *float64  `json:"distance_from_previous_m,omitempty"`
	TimeGapSeconds        *int      `json:"time_gap_seconds,omitempty"`
	SpeedMS               *float64  `json:"speed_ms,omitempty"`
	ExcludeFromHRAnalysis bool      `json:"exclude_from_hr_analysis"`
	ExclusionReason       *string   `json:"exclusion_reason,omitempty"`
}

// HRSeriesPoint is one sample on the heart-rate chart.
type HRSeriesPoint struct {
	TimeSeconds     float64 `json:"time_seconds"`
	HeartRate       int     `json:"heart_rate"`
	PointOrder      int     `json:"point_order"`
	Excluded        bool    `json:"excluded"`
	ExclusionReason *string `json:"exclusion_reason,omitempty"`
}

type HRSeriesStats struct {
	AvgHR          *int           `json:"avg_hr"`
	MaxHR          *int           `json:"max_hr"`
	MinHR          *int           `json:"min_hr"`
	ValidHRPoints  int            `json:"valid_hr_points"`
	TotalHRPoints  int            `json:"total_hr_points"`
	ExcludedPoints int            `json:"excluded_points"`
	Breakdown      map[string]int `json:"exclusion_breakdown"`
}

type HRSeries struct {
	ActivityID  string          `json:"activity_id"`
	TotalPoints int             `json:"total_points"`
	Data        []HRSeriesPoint `json:"data"`
	Stats       HRSeriesStats   `json:"stats"`
}

type ElevationPoint struct {
	DistanceKM float64 `json:"distance_km"`
	ElevationM float64 `json:"elevation_m"`
	PointOrder int     `json:"point_order"`
}

type ElevationProfile struct {
	ActivityID      string           `json:"activity_id"`
	TotalPoints     int              `json:"total_points"`
	Data            []ElevationPoint `json:"data"`
	TotalDistanceKM float64          `json:"total_distance_km"`
}
