package exclusion

import "time"

// Range types. Only user_range rows may be deleted through the API; other
// types are reserved for automatic range exclusions.
const (
	TypeUserRange = "user_range"
)

const maxReasonLen = 100

type Range struct {
	ID           string    `json:"id"`
	ActivityID   string    `json:"activity_id"`
	StartSeconds int       `json:"start_time_seconds"`
	EndSeconds   int       `json:"end_time_seconds"`
	Reason       *string   `json:"reason,omitempty"`
	Type         string    `json:"exclusion_type"`
	CreatedAt    time.Time `json:"created_at"`
}
