package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Toko Baju", "toko baju"},
		{"  TOKO   Baju!! ", "toko baju"},
		{"Café Ñoño", "cafe nono"},
		{"Warung Makan \"Bu Sri\" (Cabang 2)", "warung makan bu sri cabang 2"},
		{"ｔｏｋｏ", "toko"},
		{"", ""},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.want {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, "kafé", Truncate("kafé bandung", 4))
	assert.Equal(t, "abc", Truncate("abc", 0))
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"4.5", 4.5, true},
		{"4,5", 4.5, true},
		{" -6.914744 ", -6.914744, true},
		{"-6,914744", -6.914744, true},
		{"1.234,5", 1234.5, true},
		{"1,234.5", 1234.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1,2,3", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDecimal(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		input  string
		want   int64
		wantOK bool
	}{
		{"87", 87, true},
		{"(1.234)", 1234, true},
		{"1,234", 1234, true},
		{"", 0, false},
		{"-3", 0, false},
		{"banyak", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCount(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
