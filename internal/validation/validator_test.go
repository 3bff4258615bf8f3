package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sbr-consolidate/internal/record"
)

var bandung = record.BoundingBox{LatMin: -6.98, LatMax: -6.83, LonMin: 107.54, LonMax: 107.75}

func sp(s string) *string { return &s }

func distinct(id int64, query, name, lat, lon, label string) record.Distinct {
	d := record.Distinct{ID: id}
	d.Query = record.StringPtr(query)
	d.Name = record.StringPtr(name)
	d.Latitude = record.StringPtr(lat)
	d.Longitude = record.StringPtr(lon)
	d.Validation = record.StringPtr(label)
	return d
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		place    string
		minScore float64
		maxScore float64
	}{
		{name: "identical", query: "Kopi Aroma", place: "Kopi Aroma", minScore: 1, maxScore: 1},
		{name: "case and punctuation", query: "kopi aroma", place: "KOPI-AROMA!", minScore: 1, maxScore: 1},
		{name: "diacritics", query: "cafe ume", place: "Café Umé", minScore: 1, maxScore: 1},
		{name: "word order", query: "aroma kopi", place: "Kopi Aroma", minScore: 1, maxScore: 1},
		{name: "query carries location", query: "kopi aroma bandung", place: "Kopi Aroma", minScore: 0.99, maxScore: 1},
		{name: "one typo", query: "warung nasi ampera", place: "Warung Nasi Ampra", minScore: 0.9, maxScore: 1},
		{name: "unrelated", query: "toko buku", place: "Bengkel Motor Jaya", minScore: 0, maxScore: 0.5},
		{name: "missing name", query: "toko buku", place: "", minScore: 0, maxScore: 0},
		{name: "missing query", query: "", place: "Toko Buku", minScore: 0, maxScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.query, tt.place)
			if got < tt.minScore || got > tt.maxScore {
				t.Errorf("Similarity(%q, %q) = %.3f, want within [%.2f, %.2f]",
					tt.query, tt.place, got, tt.minScore, tt.maxScore)
			}
		})
	}
}

func TestSimilarityIsSymmetricAndBounded(t *testing.T) {
	pairs := [][2]string{
		{"kopi aroma", "aroma"},
		{"a b c", "c d e"},
		{"Bakso Malang Pak Kumis", "bakso pak kumis"},
		{"123", "1234"},
	}
	for _, p := range pairs {
		ab, ba := Similarity(p[0], p[1]), Similarity(p[1], p[0])
		assert.InDelta(t, ab, ba, 1e-9, "%q vs %q", p[0], p[1])
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 1.0)
	}
}

func TestGeoCheck(t *testing.T) {
	tests := []struct {
		name string
		lat  *string
		lon  *string
		want GeoResult
	}{
		{name: "inside", lat: sp("-6.9147"), lon: sp("107.6098"), want: GeoInside},
		{name: "inside comma decimals", lat: sp("-6,9147"), lon: sp("107,6098"), want: GeoInside},
		{name: "on the edge", lat: sp("-6.98"), lon: sp("107.75"), want: GeoInside},
		{name: "jakarta", lat: sp("-6.2088"), lon: sp("106.8456"), want: GeoOutside},
		{name: "null latitude", lat: nil, lon: sp("107.6"), want: GeoMissing},
		{name: "both null", lat: nil, lon: nil, want: GeoMissing},
		{name: "blank", lat: sp("  "), lon: sp("107.6"), want: GeoMissing},
		{name: "garbage", lat: sp("n/a"), lon: sp("107.6"), want: GeoUnparsable},
		{name: "out of range", lat: sp("-96.9"), lon: sp("107.6"), want: GeoUnparsable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GeoCheck(tt.lat, tt.lon, bandung))
		})
	}
}

func TestNullCoordinatesNeverPass(t *testing.T) {
	world := record.BoundingBox{LatMin: -90, LatMax: 90, LonMin: -180, LonMax: 180}
	assert.False(t, GeoCheck(nil, nil, world).Passes())
	assert.False(t, GeoCheck(sp("0"), nil, world).Passes())
	assert.True(t, GeoCheck(sp("0"), sp("0"), world).Passes())
}

func TestValidateRetainsMatchingRecord(t *testing.T) {
	v := NewValidator(0.7, bandung)
	got := v.Validate(false, distinct(1, "kopi aroma", "Kopi Aroma", "-6.9147", "107.6098", "Found"))
	assert.Equal(t, record.Found, got.Outcome)
	assert.Empty(t, got.Reason)
	assert.Equal(t, "inside", got.Geo)
	assert.EqualValues(t, 1, got.DistinctID)
}

func TestValidateExcludesLowSimilarity(t *testing.T) {
	v := NewValidator(0.7, bandung).WithSimilarity(func(string, string) float64 { return 0.4 })
	got := v.Validate(false, distinct(2, "q", "n", "-6.9147", "107.6098", "Found"))
	assert.Equal(t, record.NotFound, got.Outcome)
	assert.Contains(t, got.Reason, ReasonSimilarity)
	assert.InDelta(t, 0.4, got.Similarity, 1e-9)
}

func TestValidateThresholdIsInclusive(t *testing.T) {
	v := NewValidator(0.7, bandung).WithSimilarity(func(string, string) float64 { return 0.7 })
	got := v.Validate(false, distinct(3, "q", "n", "-6.9147", "107.6098", "Found"))
	assert.Equal(t, record.Found, got.Outcome)
}

func TestValidateFailureOrder(t *testing.T) {
	v := NewValidator(0.7, bandung)

	tests := []struct {
		name   string
		row    record.Distinct
		reason string
	}{
		{name: "label first", row: distinct(1, "x", "y", "", "", "NotFound"), reason: ReasonLabel},
		{name: "null label", row: distinct(2, "kopi", "kopi", "-6.9", "107.6", ""), reason: ReasonLabel},
		{name: "similarity before geo", row: distinct(3, "toko buku", "Bengkel Motor", "", "", "Found"), reason: ReasonSimilarity},
		{name: "missing coordinates", row: distinct(4, "kopi", "Kopi", "", "107.6", "Found"), reason: ReasonGeo},
		{name: "outside box", row: distinct(5, "kopi", "Kopi", "-6.2", "106.8", "Found"), reason: ReasonGeo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(false, tt.row)
			assert.Equal(t, record.NotFound, got.Outcome)
			assert.Contains(t, got.Reason, tt.reason)
		})
	}
}

func TestValidateAllStats(t *testing.T) {
	v := NewValidator(0.7, bandung)
	rows := []record.Distinct{
		distinct(1, "kopi aroma", "Kopi Aroma", "-6.9147", "107.6098", "Found"),
		distinct(2, "kopi aroma", "Kopi Aroma", "-6.9147", "107.6098", "NotFound"),
		distinct(3, "toko buku", "Bengkel Motor Jaya", "-6.9147", "107.6098", "Found"),
		distinct(4, "kopi aroma", "Kopi Aroma", "", "", "Found"),
	}

	verdicts, stats := v.ValidateAll(false, rows)
	assert.Len(t, verdicts, 4)
	assert.Equal(t, Stats{Evaluated: 4, Found: 1, LabelFailed: 1, SimilarityLow: 1, GeoFailed: 1}, stats)
}
