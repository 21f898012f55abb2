package gpx

import "strings"

// Normalized activity categories.
const (
	TypeRunning  = "running"
	TypeCycling  = "cycling"
	TypeSwimming = "swimming"
	TypeWalking  = "walking"
	TypeSkiing   = "skiing"
	TypePaddling = "paddling"
)

var typeSynonyms = map[string]string{
	"running": TypeRunning, "run": TypeRunning, "jog": TypeRunning, "jogging": TypeRunning,
	"trail_running": TypeRunning, "treadmill": TypeRunning,

	"cycling": TypeCycling, "bike": TypeCycling, "biking": TypeCycling, "bicycle": TypeCycling,
	"mountain_biking": TypeCycling, "road_cycling": TypeCycling, "mtb": TypeCycling,

	"swimming": TypeSwimming, "swim": TypeSwimming, "pool_swimming": TypeSwimming,
	"open_water_swimming": TypeSwimming, "openwater": TypeSwimming,

	"walking": TypeWalking, "walk": TypeWalking, "hiking": TypeWalking, "hike": TypeWalking,
	"trekking": TypeWalking, "trek": TypeWalking,

	"skiing": TypeSkiing, "ski": TypeSkiing, "nordic_skiing": TypeSkiing,

	"kayaking": TypePaddling, "kayak": TypePaddling, "canoeing": TypePaddling,
	"canoe": TypePaddling, "paddling": TypePaddling, "paddle": TypePaddling,
}

// Keyword rules are ordered: names often match several categories and the
// first matching rule wins.
var keywordRules = []struct {
	category string
	keywords []string
}{
	{TypeSwimming, []string{"swim", "swimming", "pool", "open-water"}},
	{TypeCycling, []string{"bike", "biking", "cycling", "cycle", "mtb"}},
	{TypeRunning, []string{"run", "running", "jog", "jogging"}},
	{TypeWalking, []string{"walk", "walking", "hike", "hiking"}},
	{TypeSkiing, []string{"ski", "skiing", "nordic"}},
	{TypePaddling, []string{"kayak", "canoe", "paddle"}},
}

// Classify resolves the activity category: explicit format metadata first,
// then filename keywords, then the configured fallback. Unrecognized
// metadata values pass through unnormalized.
func Classify(typeHint, name, sourcePath, fallback string) string {
	if hint := strings.ToLower(strings.TrimSpace(typeHint)); hint != "" {
		if normalized, ok := typeSynonyms[hint]; ok {
			return normalized
		}
		return hint
	}

	fullText := strings.ToLower(name + " " + sourcePath)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(fullText, kw) {
				return rule.category
			}
		}
	}

	return fallback
}
