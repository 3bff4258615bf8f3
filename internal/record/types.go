package record

import "fmt"

// Column names of the fifteen semantic fields, in identity and export order.
const (
	ColIDSBR       = "idsbr"
	ColQuery       = "query"
	ColName        = "name"
	ColCategory    = "category"
	ColRating      = "rating"
	ColReviewCount = "review_count"
	ColAddress     = "address"
	ColPhone       = "phone"
	ColWebsite     = "website"
	ColLatitude    = "latitude"
	ColLongitude   = "longitude"
	ColStatus      = "status"
	ColHours       = "hours"
	ColPlaceType   = "place_type"
	ColValidation  = "validation"
)

// Columns lists the semantic fields in their fixed order.
var Columns = []string{
	ColIDSBR, ColQuery, ColName, ColCategory, ColRating, ColReviewCount,
	ColAddress, ColPhone, ColWebsite, ColLatitude, ColLongitude,
	ColStatus, ColHours, ColPlaceType, ColValidation,
}

// FieldCount is the size of the identity tuple.
const FieldCount = 15

// headerAliases maps lowercase shard headers onto canonical columns.
// Scraper workers emit Indonesian headers; older shards use English ones.
var headerAliases = map[string]string{
	"idsbr":           ColIDSBR,
	"id_sbr":          ColIDSBR,
	"query":           ColQuery,
	"kueri":           ColQuery,
	"name":            ColName,
	"nama":            ColName,
	"nama usaha":      ColName,
	"title":           ColName,
	"category":        ColCategory,
	"kategori":        ColCategory,
	"rating":          ColRating,
	"review_count":    ColReviewCount,
	"reviews":         ColReviewCount,
	"ulasan":          ColReviewCount,
	"jumlah ulasan":   ColReviewCount,
	"address":         ColAddress,
	"alamat":          ColAddress,
	"phone":           ColPhone,
	"telepon":         ColPhone,
	"no telepon":      ColPhone,
	"website":         ColWebsite,
	"situs":           ColWebsite,
	"latitude":        ColLatitude,
	"lat":             ColLatitude,
	"longitude":       ColLongitude,
	"lon":             ColLongitude,
	"lng":             ColLongitude,
	"status":          ColStatus,
	"hours":           ColHours,
	"jam":             ColHours,
	"jam operasional": ColHours,
	"place_type":      ColPlaceType,
	"type":            ColPlaceType,
	"tipe":            ColPlaceType,
	"validation":      ColValidation,
	"validasi":        ColValidation,
}

// CanonicalColumn resolves a shard header to a canonical column name.
func CanonicalColumn(header string) (string, bool) {
	col, ok := headerAliases[normalizeHeader(header)]
	return col, ok
}

// Label is the canonical two-valued validation classification.
type Label string

const (
	Found    Label = "Found"
	NotFound Label = "NotFound"
)

// ParseLabel accepts only the canonical spellings.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case Found:
		return Found, nil
	case NotFound:
		return NotFound, nil
	}
	return NotFound, fmt.Errorf("invalid label %q", s)
}

// Raw is one scraped observation, every field nullable text.
type Raw struct {
	Shard string

	IDSBR       *string
	Query       *string
	Name        *string
	Category    *string
	Rating      *string
	ReviewCount *string
	Address     *string
	Phone       *string
	Website     *string
	Latitude    *string
	Longitude   *string
	Status      *string
	Hours       *string
	PlaceType   *string
	Validation  *string
}

// Fields returns pointers to the fifteen semantic fields in Columns order.
func (r *Raw) Fields() []**string {
	return []**string{
		&r.IDSBR, &r.Query, &r.Name, &r.Category, &r.Rating, &r.ReviewCount,
		&r.Address, &r.Phone, &r.Website, &r.Latitude, &r.Longitude,
		&r.Status, &r.Hours, &r.PlaceType, &r.Validation,
	}
}

// Values returns the fifteen semantic fields in Columns order.
func (r Raw) Values() []*string {
	fields := r.Fields()
	values := make([]*string, len(fields))
	for i, f := range fields {
		values[i] = *f
	}
	return values
}

// Set assigns a field by canonical column name.
func (r *Raw) Set(column string, value *string) bool {
	for i, col := range Columns {
		if col == column {
			*r.Fields()[i] = value
			return true
		}
	}
	return false
}

// Distinct is a row of the Distinct Set.
type Distinct struct {
	ID int64
	Raw
}

// Shard is the parsed content of one worker output file.
type Shard struct {
	Name string
	Path string
	Rows []Raw
}

// BoundingBox is the rectangular region a retained record must fall inside.
type BoundingBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Valid reports whether the box is non-empty and within WGS84 ranges.
func (b BoundingBox) Valid() bool {
	return b.LatMin <= b.LatMax && b.LonMin <= b.LonMax &&
		b.LatMin >= -90 && b.LatMax <= 90 &&
		b.LonMin >= -180 && b.LonMax <= 180
}

// Contains is inclusive on every edge.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// Verdict is the persisted outcome of similarity and geo validation.
type Verdict struct {
	DistinctID int64   `json:"distinct_id"`
	Similarity float64 `json:"similarity"`
	Geo        string  `json:"geo"`
	Outcome    Label   `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
}

// Final is a typed, validated, densely numbered output row.
type Final struct {
	ID         int64
	DistinctID int64

	IDSBR       *string
	Query       *string
	Name        *string
	Category    *string
	Rating      *float64
	ReviewCount *int64
	Address     *string
	Phone       *string
	Website     *string
	Latitude    *float64
	Longitude   *float64
	Status      *string
	Hours       *string
	PlaceType   *string
	Validation  Label
}

// RescrapeTask is one unit the scraping workers must redo.
type RescrapeTask struct {
	Query     string `json:"query"`
	Partition string `json:"partition,omitempty"`
	Reason    string `json:"reason"`
	Shard     string `json:"shard,omitempty"`
}

// Re-scrape reasons.
const (
	ReasonMissing    = "missing"
	ReasonIncomplete = "incomplete"
	ReasonCorrupt    = "corrupt"
)
