package validation

import (
	"strings"

	"github.com/sbr-consolidate/internal/normalize"
	"github.com/sbr-consolidate/internal/record"
)

// GeoCheck classifies raw coordinate text against box. Absent or blank
// coordinates are GeoMissing; text that is not a decimal or lies outside
// WGS84 ranges is GeoUnparsable.
func GeoCheck(lat, lon *string, box record.BoundingBox) GeoResult {
	if lat == nil || lon == nil || strings.TrimSpace(*lat) == "" || strings.TrimSpace(*lon) == "" {
		return GeoMissing
	}

	la, okLat := normalize.ParseDecimal(*lat)
	lo, okLon := normalize.ParseDecimal(*lon)
	if !okLat || !okLon || la < -90 || la > 90 || lo < -180 || lo > 180 {
		return GeoUnparsable
	}

	if box.Contains(la, lo) {
		return GeoInside
	}
	return GeoOutside
}
