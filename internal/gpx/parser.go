package gpx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoTrack       = errors.New("no track found in gpx file")
	ErrNoTrackpoints = errors.New("no usable trackpoints found in gpx file")
)

// Parse reads a GPX document and returns the ordered accepted samples from
// its first track. Individual malformed points are logged and skipped; the
// parse fails only when the document has no track or no point survives.
func Parse(r io.Reader, sourcePath string) (*File, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	if len(doc.Tracks) == 0 {
		return nil, ErrNoTrack
	}
	trk := doc.Tracks[0]

	name := trk.Name
	if name == "" {
		base := filepath.Base(sourcePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	typeHint := trk.Extensions.Sport
	if typeHint == "" {
		typeHint = trk.Type
	}

	var samples []RawSample
	pointOrder := 0
	for _, seg := range trk.Segments {
		for _, pt := range seg.Points {
			sample, ok := parsePoint(pt, pointOrder)
			if !ok {
				continue
			}
			sample.PointOrder = pointOrder
			samples = append(samples, sample)
			pointOrder++
		}
	}

	if len(samples) == 0 {
		return nil, ErrNoTrackpoints
	}

	return &File{Name: name, TypeHint: typeHint, Samples: samples}, nil
}

func parsePoint(pt trackpoint, pointOrder int) (RawSample, bool) {
	lat, err := strconv.ParseFloat(pt.Lat, 64)
	if err != nil {
		log.Printf("gpx: skipping trackpoint %d: bad lat %q", pointOrder, pt.Lat)
		return RawSample{}, false
	}
	lon, err := strconv.ParseFloat(pt.Lon, 64)
	if err != nil {
		log.Printf("gpx: skipping trackpoint %d: bad lon %q", pointOrder, pt.Lon)
		return RawSample{}, false
	}

	// Points without a timestamp carry no usable ordering information and
	// are dropped without a warning.
	if pt.Time == "" {
		return RawSample{}, false
	}
	recordedAt, err := time.Parse(time.RFC3339, pt.Time)
	if err != nil {
		log.Printf("gpx: skipping trackpoint %d: bad time %q", pointOrder, pt.Time)
		return RawSample{}, false
	}

	var elevation *float64
	if pt.Elevation != nil {
		ele, err := strconv.ParseFloat(strings.TrimSpace(*pt.Elevation), 64)
		if err != nil {
			log.Printf("gpx: skipping trackpoint %d: bad elevation %q", pointOrder, *pt.Elevation)
			return RawSample{}, false
		}
		elevation = &ele
	}

	var heartRate *int
	if raw := extractHeartRate(pt.Extensions); raw != nil {
		hr, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			log.Printf("gpx: skipping trackpoint %d: bad heart rate %q", pointOrder, *raw)
			return RawSample{}, false
		}
		heartRate = &hr
	}

	return RawSample{
		Latitude:   lat,
		Longitude:  lon,
		Elevation:  elevation,
		RecordedAt: recordedAt.UTC(),
		HeartRate:  heartRate,
	}, true
}
