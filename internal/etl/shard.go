package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/record"
)

// ShardError reports a shard that could not be read or parsed. It is an
// ingestion-format problem of one shard, never a failure of the run.
type ShardError struct {
	Shard string
	Line  int
	Err   error
}

func (e *ShardError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("shard %s: line %d: %v", e.Shard, e.Line, e.Err)
	}
	return fmt.Sprintf("shard %s: %v", e.Shard, e.Err)
}

func (e *ShardError) Unwrap() error { return e.Err }

// ReadShard parses one worker output file. Cells are kept verbatim apart
// from storable text repair (see cleanCell); empty cells become NULL.
func ReadShard(localDebug bool, path string) (*record.Shard, error) {
	name := filepath.Base(path)

	file, err := os.Open(path)
	if err != nil {
		return nil, &ShardError{Shard: name, Err: err}
	}
	defer file.Close()

	shard, err := parseShard(localDebug, name, file)
	if err != nil {
		return nil, err
	}
	shard.Path = path
	return shard, nil
}

func parseShard(localDebug bool, name string, r io.Reader) (*record.Shard, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ShardError{Shard: name, Err: eris.New("empty file, no header row")}
	}
	if err != nil {
		return nil, &ShardError{Shard: name, Line: 1, Err: err}
	}

	// Create column mapping
	columnMap := make(map[string]int)
	for i, col := range header {
		canonical, ok := record.CanonicalColumn(col)
		if !ok {
			debug.DebugOutput(localDebug, "%s: ignoring column %q", name, col)
			continue
		}
		if _, dup := columnMap[canonical]; !dup {
			columnMap[canonical] = i
		}
	}
	if len(columnMap) == 0 {
		return nil, &ShardError{Shard: name, Line: 1, Err: eris.Errorf("no recognised columns in header %v", header)}
	}

	shard := &record.Shard{Name: name}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := reader.FieldPos(0)
			return nil, &ShardError{Shard: name, Line: line, Err: err}
		}

		var raw record.Raw
		raw.Shard = name
		for col, idx := range columnMap {
			raw.Set(col, getColumnValue(row, idx))
		}
		shard.Rows = append(shard.Rows, raw)
	}

	debug.DebugOutput(localDebug, "%s: %d rows, %d mapped columns", name, len(shard.Rows), len(columnMap))
	return shard, nil
}

// getColumnValue returns the cleaned cell, or nil when absent or empty.
func getColumnValue(row []string, idx int) *string {
	if idx >= len(row) {
		return nil
	}
	v := cleanCell(row[idx])
	if v == "" {
		return nil
	}
	return &v
}

// cleanCell makes a cell storable as database text. Cells that are not
// valid UTF-8 are decoded as Windows-1252, the usual encoding of
// spreadsheet exports; NUL bytes are dropped. Valid cells pass unchanged.
func cleanCell(v string) string {
	if !utf8.ValidString(v) {
		decoded, err := charmap.Windows1252.NewDecoder().String(v)
		if err != nil {
			decoded = strings.ToValidUTF8(v, "\uFFFD")
		}
		v = decoded
	}
	if strings.IndexByte(v, 0) >= 0 {
		v = strings.ReplaceAll(v, "\x00", "")
	}
	return v
}

// ListShards returns the CSV files of a directory in name order.
func ListShards(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "etl: read shard directory %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
