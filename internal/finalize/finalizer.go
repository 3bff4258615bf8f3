// Package finalize types the validated distinct records and numbers them
// densely for export.
package finalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/normalize"
	"github.com/sbr-consolidate/internal/record"
)

// Rating bounds of the source platform.
const (
	minRating = 0.0
	maxRating = 5.0
)

// Finalizer converts text fields to their typed form. A field that fails to
// convert becomes NULL; the rest of the record is kept.
type Finalizer struct {
	maxLength func(column string) int
}

// NewFinalizer creates a finalizer. maxLength returns the rune limit of a
// text column; a non-positive limit disables truncation.
func NewFinalizer(maxLength func(column string) int) *Finalizer {
	if maxLength == nil {
		maxLength = func(string) int { return 0 }
	}
	return &Finalizer{maxLength: maxLength}
}

// Stats counts the field-level adjustments of one pass.
type Stats struct {
	Rows      int            `json:"rows"`
	Nulled    map[string]int `json:"nulled,omitempty"`
	Truncated map[string]int `json:"truncated,omitempty"`
}

func (s *Stats) null(col string) {
	if s.Nulled == nil {
		s.Nulled = make(map[string]int)
	}
	s.Nulled[col]++
}

func (s *Stats) truncate(col string) {
	if s.Truncated == nil {
		s.Truncated = make(map[string]int)
	}
	s.Truncated[col]++
}

// Finalize types rows in the given order and assigns identifiers 1..N.
func (f *Finalizer) Finalize(localDebug bool, rows []record.Distinct) ([]record.Final, Stats) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	out := make([]record.Final, len(rows))
	stats := Stats{Rows: len(rows)}
	for i, d := range rows {
		out[i] = f.finalizeRow(localDebug, int64(i+1), d, &stats)
	}

	zap.L().Info("finalize: typed records",
		zap.Int("rows", stats.Rows),
		zap.Any("nulled", stats.Nulled),
		zap.Any("truncated", stats.Truncated))
	return out, stats
}

func (f *Finalizer) finalizeRow(localDebug bool, id int64, d record.Distinct, stats *Stats) record.Final {
	final := record.Final{
		ID:         id,
		DistinctID: d.ID,
		IDSBR:      f.text(record.ColIDSBR, d.IDSBR, stats),
		Query:      f.text(record.ColQuery, d.Query, stats),
		Name:       f.text(record.ColName, d.Name, stats),
		Category:   f.text(record.ColCategory, d.Category, stats),
		Address:    f.text(record.ColAddress, d.Address, stats),
		Phone:      f.text(record.ColPhone, d.Phone, stats),
		Website:    f.text(record.ColWebsite, d.Website, stats),
		Status:     f.text(record.ColStatus, d.Status, stats),
		Hours:      f.text(record.ColHours, d.Hours, stats),
		PlaceType:  f.text(record.ColPlaceType, d.PlaceType, stats),
		Rating:     decimalIn(record.ColRating, d.Rating, minRating, maxRating, stats),
		Latitude:   decimalIn(record.ColLatitude, d.Latitude, -90, 90, stats),
		Longitude:  decimalIn(record.ColLongitude, d.Longitude, -180, 180, stats),
	}

	if d.ReviewCount != nil {
		if n, ok := normalize.ParseCount(*d.ReviewCount); ok {
			final.ReviewCount = &n
		} else {
			debug.DebugOutput(localDebug, "distinct %d: review_count %q -> NULL", d.ID, *d.ReviewCount)
			stats.null(record.ColReviewCount)
		}
	}

	label, err := record.ParseLabel(record.Deref(d.Validation))
	if err != nil {
		label = record.NotFound
	}
	final.Validation = label
	return final
}

// text trims and truncates a text field. Blank text becomes NULL.
func (f *Finalizer) text(col string, v *string, stats *Stats) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		stats.null(col)
		return nil
	}
	if cut := normalize.Truncate(s, f.maxLength(col)); cut != s {
		stats.truncate(col)
		s = cut
	}
	return &s
}

// decimalIn parses a decimal and keeps it only within [lo, hi].
func decimalIn(col string, v *string, lo, hi float64, stats *Stats) *float64 {
	if v == nil {
		return nil
	}
	f, ok := normalize.ParseDecimal(*v)
	if !ok || f < lo || f > hi {
		stats.null(col)
		return nil
	}
	return &f
}
