// Package export writes the final dataset as CSV.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/record"
)

// Output file names.
const (
	FullFile   = "final_full.csv"
	PublicFile = "final_public.csv"
)

// IDColumn heads the internal identifier in the full export.
const IDColumn = "final_id"

// Exporter handles exporting the final set to CSV
type Exporter struct {
	outputDir string
}

// NewExporter creates a new exporter writing into outputDir.
func NewExporter(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// Result names the written files.
type Result struct {
	FullPath   string `json:"full_path"`
	PublicPath string `json:"public_path"`
	Rows       int    `json:"rows"`
}

// Export writes the full export, with the internal identifier, and the
// public export, without it. Each file is written to a temporary name and
// renamed into place.
func (e *Exporter) Export(finals []record.Final) (*Result, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create output directory %s", e.outputDir)
	}

	res := &Result{
		FullPath:   filepath.Join(e.outputDir, FullFile),
		PublicPath: filepath.Join(e.outputDir, PublicFile),
		Rows:       len(finals),
	}
	if err := writeAtomic(res.FullPath, func(w io.Writer) error { return WriteCSV(w, finals, true) }); err != nil {
		return nil, err
	}
	if err := writeAtomic(res.PublicPath, func(w io.Writer) error { return WriteCSV(w, finals, false) }); err != nil {
		return nil, err
	}

	zap.L().Info("export: files written",
		zap.String("full", res.FullPath),
		zap.String("public", res.PublicPath),
		zap.Int("rows", res.Rows))
	return res, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return eris.Wrapf(err, "export: create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "export: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	return eris.Wrapf(os.Rename(tmp.Name(), path), "export: rename into %s", path)
}

// Header returns the column names of an export.
func Header(withID bool) []string {
	header := make([]string, 0, record.FieldCount+1)
	if withID {
		header = append(header, IDColumn)
	}
	return append(header, record.Columns...)
}

// WriteCSV writes a header row followed by one row per final record.
func WriteCSV(w io.Writer, finals []record.Final, withID bool) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(withID)); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, f := range finals {
		if err := writer.Write(Row(f, withID)); err != nil {
			return eris.Wrapf(err, "export: write row %d", f.ID)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Row renders one final record in Header order. NULL renders empty.
func Row(f record.Final, withID bool) []string {
	safeString := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	safeFloat := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	}

	row := make([]string, 0, record.FieldCount+1)
	if withID {
		row = append(row, strconv.FormatInt(f.ID, 10))
	}

	reviews := ""
	if f.ReviewCount != nil {
		reviews = strconv.FormatInt(*f.ReviewCount, 10)
	}

	return append(row,
		safeString(f.IDSBR),     // idsbr
		safeString(f.Query),     // query
		safeString(f.Name),      // name
		safeString(f.Category),  // category
		safeFloat(f.Rating),     // rating
		reviews,                 // review_count
		safeString(f.Address),   // address
		safeString(f.Phone),     // phone
		safeString(f.Website),   // website
		safeFloat(f.Latitude),   // latitude
		safeFloat(f.Longitude),  // longitude
		safeString(f.Status),    // status
		safeString(f.Hours),     // hours
		safeString(f.PlaceType), // place_type
		string(f.Validation),    // validation
	)
}
