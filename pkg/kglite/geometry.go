package kglite

import (
	"fmt"
	"strconv"
	"strings"
)

// GeometryConverter turns a raw geometry cell into a WKT string plus a
// centroid. GeoJSON-to-WKT conversion lives behind this boundary; the core
// never parses geometry formats itself.
type GeometryConverter interface {
	Convert(value any) (wkt string, lat, lon float64, err error)
}

// WKTGeometry is the default converter: it accepts values that are already
// WKT strings and derives a centroid for POINT geometries only. Other
// geometry classes pass through with a zero centroid.
type WKTGeometry struct{}

// Convert implements GeometryConverter.
func (WKTGeometry) Convert(value any) (string, float64, float64, error) {
	s, ok := value.(string)
	if !ok {
		return "", 0, 0, fmt.Errorf("geometry value must be a WKT string, got %T", value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, 0, fmt.Errorf("empty geometry value")
	}
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "POINT") {
		if lon, lat, ok := parsePointWKT(s); ok {
			return s, lat, lon, nil
		}
	}
	return s, 0, 0, nil
}

// parsePointWKT extracts (lon, lat) from "POINT (x y)". WKT point order is
// x y, i.e. longitude first.
func parsePointWKT(s string) (float64, float64, bool) {
	open := strings.IndexByte(s, '(')
	close := strings.IndexByte(s, ')')
	if open < 0 || close <= open {
		return 0, 0, false
	}
	fields := strings.Fields(s[open+1 : close])
	if len(fields) < 2 {
		return 0, 0, false
	}
	lon, err1 := strconv.ParseFloat(fields[0], 64)
	lat, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lon, lat, true
}
