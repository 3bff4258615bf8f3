package validation

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/record"
)

// Validator decides which distinct records are retained: the canonical label
// must be Found, the name must resemble the query and the coordinates must
// fall inside the bounding box.
type Validator struct {
	threshold  float64
	box        record.BoundingBox
	similarity func(query, name string) float64
}

// NewValidator creates a validator with the given threshold and box.
func NewValidator(threshold float64, box record.BoundingBox) *Validator {
	return &Validator{threshold: threshold, box: box, similarity: Similarity}
}

// WithSimilarity replaces the similarity metric.
func (v *Validator) WithSimilarity(fn func(query, name string) float64) *Validator {
	v.similarity = fn
	return v
}

// Validate produces the verdict for one distinct record. The reason names
// the first failing condition.
func (v *Validator) Validate(localDebug bool, d record.Distinct) record.Verdict {
	verdict := record.Verdict{DistinctID: d.ID, Outcome: record.NotFound}

	sim := v.similarity(record.Deref(d.Query), record.Deref(d.Name))
	geo := GeoCheck(d.Latitude, d.Longitude, v.box)
	verdict.Similarity = sim
	verdict.Geo = geo.String()

	switch {
	case record.Deref(d.Validation) != string(record.Found):
		verdict.Reason = ReasonLabel
	case sim < v.threshold:
		verdict.Reason = fmt.Sprintf("%s (%.3f < %.3f)", ReasonSimilarity, sim, v.threshold)
	case !geo.Passes():
		verdict.Reason = fmt.Sprintf("%s (%s)", ReasonGeo, geo)
	default:
		verdict.Outcome = record.Found
	}

	debug.DebugOutput(localDebug, "distinct %d: similarity=%.3f geo=%s -> %s %s",
		d.ID, sim, geo, verdict.Outcome, verdict.Reason)
	return verdict
}

// ValidateAll validates every row and tallies the outcomes.
func (v *Validator) ValidateAll(localDebug bool, rows []record.Distinct) ([]record.Verdict, Stats) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	verdicts := make([]record.Verdict, len(rows))
	stats := Stats{Evaluated: len(rows)}
	for i, d := range rows {
		verdicts[i] = v.Validate(localDebug, d)
		switch {
		case verdicts[i].Outcome == record.Found:
			stats.Found++
		case verdicts[i].Reason == ReasonLabel:
			stats.LabelFailed++
		case verdicts[i].Similarity < v.threshold:
			stats.SimilarityLow++
		default:
			stats.GeoFailed++
		}
	}

	zap.L().Info("validation: pass finished",
		zap.Int("evaluated", stats.Evaluated),
		zap.Int("found", stats.Found),
		zap.Int("label_failed", stats.LabelFailed),
		zap.Int("similarity_low", stats.SimilarityLow),
		zap.Int("geo_failed", stats.GeoFailed))
	return verdicts, stats
}
