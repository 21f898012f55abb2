package gpx

// Heart-rate extension schemas are tried in a fixed priority order. Adding
// support for another vendor means appending an extractor here. Extractors
// return the raw element text; the parser validates it per point.
type hrExtractor struct {
	schema  string
	extract func(ext *pointExtensions) (string, bool)
}

var hrExtractors = []hrExtractor{
	{
		schema: "garmin-trackpointextension",
		extract: func(ext *pointExtensions) (string, bool) {
			if ext.TrackPointExtension != nil && ext.TrackPointExtension.HR != nil {
				return *ext.TrackPointExtension.HR, true
			}
			return "", false
		},
	},
	{
		schema: "cluetrust-gpxdata",
		extract: func(ext *pointExtensions) (string, bool) {
			if ext.HR != nil {
				return *ext.HR, true
			}
			return "", false
		},
	},
}

func extractHeartRate(ext *pointExtensions) *string {
	if ext == nil {
		return nil
	}
	for _, e := range hrExtractors {
		if raw, ok := e.extract(ext); ok {
			return &raw
		}
	}
	return nil
}
