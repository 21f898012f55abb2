package gpx

import "time"

// XML shapes for decoding. Field tags carry local names only, so documents
// with or without a namespace prefix decode the same way. Coordinates stay
// strings here: a bad attribute must skip one point, not fail the document.
type document struct {
	Tracks []track `xml:"trk"`
}

type track struct {
	Name       string          `xml:"name"`
	Type       string          `xml:"type"`
	Segments   []trackSegment  `xml:"trkseg"`
	Extensions trackExtensions `xml:"extensions"`
}

type trackExtensions struct {
	Sport string `xml:"sport"`
}

type trackSegment struct {
	Points []trackpoint `xml:"trkpt"`
}

type trackpoint struct {
	Lat        string           `xml:"lat,attr"`
	Lon        string           `xml:"lon,attr"`
	Elevation  *string          `xml:"ele"`
	Time       string           `xml:"time"`
	Extensions *pointExtensions `xml:"extensions"`
}

// pointExtensions covers the known vendor heart-rate schemas: Garmin's
// TrackPointExtension wraps hr in a container element, Cluetrust gpxdata
// puts hr directly under extensions. Values stay strings for the same
// reason coordinates do: a bad value must skip one point, not fail the
// document.
type pointExtensions struct {
	TrackPointExtension *struct {
		HR *string `xml:"hr"`
	} `xml:"TrackPointExtension"`
	HR *string `xml:"hr"`
}

// RawSample is one accepted trackpoint in parse order.
type RawSample struct {
	PointOrder int
	Longitude  float64
	Latitude   float64
	Elevation  *float64
	RecordedAt time.Time
	HeartRate  *int
}

// File is the parsed GPX payload handed to the ingestion pipeline.
type File struct {
	Name     string
	TypeHint string
	Samples  []RawSample
}
