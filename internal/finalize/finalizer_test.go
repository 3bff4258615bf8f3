package finalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbr-consolidate/internal/record"
)

func sp(s string) *string { return &s }

func limits(col string) int {
	switch col {
	case record.ColName:
		return 10
	case record.ColIDSBR:
		return 8
	}
	return 255
}

func row(id int64) record.Distinct {
	d := record.Distinct{ID: id}
	d.IDSBR = sp("SBR00001")
	d.Query = sp("kopi aroma")
	d.Name = sp("Kopi Aroma")
	d.Rating = sp("4,6")
	d.ReviewCount = sp("(1.234)")
	d.Latitude = sp("-6.9175")
	d.Longitude = sp("107.6078")
	d.Validation = sp("Found")
	return d
}

func TestFinalizeTypesFields(t *testing.T) {
	f := NewFinalizer(limits)
	out, stats := f.Finalize(false, []record.Distinct{row(7)})
	require.Len(t, out, 1)

	got := out[0]
	assert.EqualValues(t, 1, got.ID)
	assert.EqualValues(t, 7, got.DistinctID)
	assert.InDelta(t, 4.6, *got.Rating, 1e-9)
	assert.EqualValues(t, 1234, *got.ReviewCount)
	assert.InDelta(t, -6.9175, *got.Latitude, 1e-9)
	assert.InDelta(t, 107.6078, *got.Longitude, 1e-9)
	assert.Equal(t, record.Found, got.Validation)
	assert.Nil(t, got.Phone)
	assert.Empty(t, stats.Nulled)
}

func TestFinalizeNullsOnlyTheBadField(t *testing.T) {
	d := row(1)
	d.Rating = sp("bagus")
	d.Latitude = sp("-96.1")
	d.ReviewCount = sp("-3")

	out, stats := NewFinalizer(limits).Finalize(false, []record.Distinct{d})
	got := out[0]
	assert.Nil(t, got.Rating)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.ReviewCount)
	assert.NotNil(t, got.Longitude)
	assert.Equal(t, "Kopi Aroma", *got.Name)
	assert.Equal(t, map[string]int{
		record.ColRating:      1,
		record.ColLatitude:    1,
		record.ColReviewCount: 1,
	}, stats.Nulled)
}

func TestFinalizeRatingBounds(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"0", ptr(0)},
		{"5", ptr(5)},
		{"5.1", nil},
		{"-0.5", nil},
		{"3.25", ptr(3.25)},
	}
	for _, tt := range tests {
		d := row(1)
		d.Rating = sp(tt.in)
		out, _ := NewFinalizer(limits).Finalize(false, []record.Distinct{d})
		assert.Equal(t, tt.want, out[0].Rating, tt.in)
	}
}

func TestFinalizeTruncatesByRunes(t *testing.T) {
	d := row(1)
	d.Name = sp("Kafé Ümit Braga Citywalk")
	d.IDSBR = sp("  SBR0000123  ")

	out, stats := NewFinalizer(limits).Finalize(false, []record.Distinct{d})
	assert.Equal(t, "Kafé Ümit ", *out[0].Name)
	assert.Equal(t, "SBR00001", *out[0].IDSBR)
	assert.Equal(t, 1, stats.Truncated[record.ColName])
	assert.Equal(t, 1, stats.Truncated[record.ColIDSBR])
}

func TestFinalizeDenseIdentifiers(t *testing.T) {
	rows := []record.Distinct{row(3), row(8), row(9), row(40)}
	out, _ := NewFinalizer(nil).Finalize(false, rows)

	require.Len(t, out, 4)
	for i, f := range out {
		assert.EqualValues(t, i+1, f.ID)
		assert.Equal(t, rows[i].ID, f.DistinctID)
	}
}

func TestFinalizeBlankTextIsNull(t *testing.T) {
	d := row(1)
	d.Address = sp("   ")
	out, _ := NewFinalizer(nil).Finalize(false, []record.Distinct{d})
	assert.Nil(t, out[0].Address)
}

func TestFinalizeWithoutLimitKeepsLongText(t *testing.T) {
	d := row(1)
	d.Address = sp(strings.Repeat("a", 1000))
	out, _ := NewFinalizer(nil).Finalize(false, []record.Distinct{d})
	assert.Len(t, *out[0].Address, 1000)
}

func ptr(f float64) *float64 { return &f }
