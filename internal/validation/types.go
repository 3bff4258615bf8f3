package validation

// GeoResult classifies a coordinate pair against the bounding box. Every
// input maps to exactly one variant; only GeoInside passes.
type GeoResult int

const (
	GeoMissing GeoResult = iota
	GeoUnparsable
	GeoOutside
	GeoInside
)

func (g GeoResult) String() string {
	switch g {
	case GeoInside:
		return "inside"
	case GeoOutside:
		return "outside"
	case GeoUnparsable:
		return "unparsable"
	default:
		return "missing_coordinates"
	}
}

// Passes reports whether the record may be retained.
func (g GeoResult) Passes() bool {
	return g == GeoInside
}

// Failure reasons, in the order they are evaluated.
const (
	ReasonLabel      = "label not Found"
	ReasonSimilarity = "name similarity below threshold"
	ReasonGeo        = "coordinates not inside bounding box"
)

// Stats summarises a validation pass.
type Stats struct {
	Evaluated     int `json:"evaluated"`
	Found         int `json:"found"`
	LabelFailed   int `json:"label_failed"`
	SimilarityLow int `json:"similarity_low"`
	GeoFailed     int `json:"geo_failed"`
}
