package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sp(s string) *string { return &s }

func sampleRaw() Raw {
	return Raw{
		IDSBR:      sp("A1"),
		Query:      sp("Toko Baju"),
		Name:       sp("Toko Baju Sejahtera"),
		Latitude:   sp("-6.9147"),
		Longitude:  sp("107.6098"),
		Validation: sp(string(Found)),
	}
}

func TestIdentityKeyEqualTuples(t *testing.T) {
	a, b := sampleRaw(), sampleRaw()
	b.Shard = "other-shard"

	assert.Equal(t, IdentityKey(a), IdentityKey(b), "shard provenance is not part of the identity")
	assert.True(t, SameIdentity(a, b))
}

func TestIdentityKeyDistinguishesNullFromEmpty(t *testing.T) {
	a, b := sampleRaw(), sampleRaw()
	b.Phone = sp("")

	assert.NotEqual(t, IdentityKey(a), IdentityKey(b))
	assert.False(t, SameIdentity(a, b))
}

func TestIdentityKeyIsStrict(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Raw)
	}{
		{"trailing whitespace", func(r *Raw) { r.Name = sp("Toko Baju Sejahtera ") }},
		{"case", func(r *Raw) { r.Query = sp("toko baju") }},
		{"coordinate text", func(r *Raw) { r.Latitude = sp("-6.91470") }},
		{"label", func(r *Raw) { r.Validation = sp(string(NotFound)) }},
		{"last field set", func(r *Raw) { r.PlaceType = sp("store") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := sampleRaw(), sampleRaw()
			tt.mutate(&b)
			assert.NotEqual(t, IdentityKey(a), IdentityKey(b))
			assert.False(t, SameIdentity(a, b))
		})
	}
}

func TestIdentityKeyNoSeparatorCollision(t *testing.T) {
	a := Raw{IDSBR: sp("A"), Query: sp("B")}
	b := Raw{IDSBR: sp("A\x1f\x01B")}
	assert.NotEqual(t, IdentityKey(a), IdentityKey(b))
}

func TestCanonicalColumn(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"idsbr", ColIDSBR, true},
		{"Nama", ColName, true},
		{"  Jam   Operasional ", ColHours, true},
		{"\ufeffidsbr", ColIDSBR, true},
		{"VALIDASI", ColValidation, true},
		{"Latitude", ColLatitude, true},
		{"unknown", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := CanonicalColumn(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawSetAndValues(t *testing.T) {
	var r Raw
	assert.True(t, r.Set(ColReviewCount, sp("12")))
	assert.False(t, r.Set("nope", sp("x")))

	values := r.Values()
	assert.Len(t, values, FieldCount)
	assert.Len(t, Columns, FieldCount)
	assert.Equal(t, "12", *values[5])
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox{LatMin: -7, LatMax: -6, LonMin: 107, LonMax: 108}
	assert.True(t, box.Valid())
	assert.True(t, box.Contains(-6.5, 107.5))
	assert.True(t, box.Contains(-7, 108), "edges are inclusive")
	assert.False(t, box.Contains(-5.9, 107.5))

	assert.False(t, BoundingBox{LatMin: 1, LatMax: 0}.Valid())
	assert.False(t, BoundingBox{LatMin: -91, LatMax: 0, LonMin: 0, LonMax: 1}.Valid())
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("Found")
	assert.NoError(t, err)
	assert.Equal(t, Found, l)

	l, err = ParseLabel("found")
	assert.Error(t, err)
	assert.Equal(t, NotFound, l)
}
