package analytics

// ZoneParams are the Karvonen inputs resolved from the user's HR profile.
type ZoneParams struct {
	HRMax     int `json:"hr_max"`
	HRResting int `json:"hr_resting"`
}

type Zone struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Min  int    `json:"min"`
	Max  int    `json:"max"`
}

const (
	defaultHRResting = 60
	defaultHRMax     = 190
)

// KarvonenZones builds the five training zones as fractions of heart-rate
// reserve (max minus resting).
func KarvonenZones(p ZoneParams) []Zone {
	reserve := float64(p.HRMax - p.HRResting)
	at := func(fraction float64) int {
		return p.HRResting + int(reserve*fraction+0.5)
	}

	return []Zone{
		{Key: "recovery", Name: "Recovery Zone", Min: p.HRResting, Max: at(0.6)},
		{Key: "aerobic", Name: "Aerobic Base", Min: at(0.6), Max: at(0.7)},
		{Key: "tempo", Name: "Tempo Zone", Min: at(0.7), Max: at(0.8)},
		{Key: "threshold", Name: "Lactate Threshold", Min: at(0.8), Max: at(0.9)},
		{Key: "vo2max", Name: "VO2 Max", Min: at(0.9), Max: p.HRMax},
	}
}

// zoneIndex buckets a heart-rate value: the first zone whose upper bound
// covers it, with spillover below the first zone and above the last.
func zoneIndex(zones []Zone, hr int) int {
	for i, z := range zones {
		if hr <= z.Max {
			return i
		}
	}
	return len(zones) - 1
}
