package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sbr-consolidate/internal/record"
)

func strPtr(s string) *string { return &s }

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		input *string
		want  record.Label
	}{
		{name: "canonical token", input: strPtr("Ditemukan"), want: record.Found},
		{name: "lowercase trailing space", input: strPtr("ditemukan "), want: record.Found},
		{name: "upper with padding", input: strPtr("  DITEMUKAN\t"), want: record.Found},
		{name: "carriage return newline", input: strPtr("Ditemukan\r\n"), want: record.Found},
		{name: "embedded control rune", input: strPtr("Dite\x00mukan"), want: record.Found},
		{name: "literal escape sequences", input: strPtr(`Ditemukan\r\n`), want: record.Found},
		{name: "quoted", input: strPtr(`"Ditemukan"`), want: record.Found},
		{name: "zero width space", input: strPtr("\u200bDitemukan"), want: record.Found},
		{name: "negative token", input: strPtr("Tidak Ditemukan"), want: record.NotFound},
		{name: "empty", input: strPtr(""), want: record.NotFound},
		{name: "whitespace only", input: strPtr(" \r\n "), want: record.NotFound},
		{name: "null", input: nil, want: record.NotFound},
		{name: "garbled", input: strPtr("D1t3mukan"), want: record.NotFound},
		{name: "prefix only", input: strPtr("Ditemu"), want: record.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.input, "Ditemukan"))
		})
	}
}

func TestLabelIsTotal(t *testing.T) {
	inputs := []string{
		"", " ", "\x7f", "\\", "\\\\\\", "ditemukan\\", "Found", "NotFound",
		"ÐITEMUKAN", "ditemukan ditemukan", "\ufeff", "\"\"", "'",
	}
	for _, in := range inputs {
		got := Label(strPtr(in), "Ditemukan")
		if got != record.Found && got != record.NotFound {
			t.Errorf("Label(%q) = %q, want one of Found/NotFound", in, got)
		}
	}
}

func TestLabelEmptyPositiveTokenNeverFound(t *testing.T) {
	assert.Equal(t, record.NotFound, Label(strPtr(""), ""))
	assert.Equal(t, record.NotFound, Label(strPtr("  "), " "))
}

func TestLabelCustomPositiveToken(t *testing.T) {
	assert.Equal(t, record.Found, Label(strPtr(" found\n"), "Found"))
	assert.Equal(t, record.NotFound, Label(strPtr("Ditemukan"), "Found"))
}
