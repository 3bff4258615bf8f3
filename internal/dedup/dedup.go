// Package dedup collapses the cumulative raw set to its distinct identity
// tuples. The store performs the same collapse in SQL; this package is used
// for duplicate reports and to check the SQL result.
package dedup

import (
	"sort"
	"strings"

	"github.com/sbr-consolidate/internal/record"
)

// Key returns the identity key of r. With trim set, every field except the
// label has leading and trailing spaces removed first, matching SQL TRIM.
func Key(r record.Raw, trim bool) string {
	if trim {
		r = trimmed(r)
	}
	return record.IdentityKey(r)
}

func trimmed(r record.Raw) record.Raw {
	out := r
	fields := out.Fields()
	for i, col := range record.Columns {
		if col == record.ColValidation {
			continue
		}
		if v := *fields[i]; v != nil {
			t := strings.Trim(*v, " ")
			*fields[i] = &t
		}
	}
	return out
}

// Collapse keeps one row per identity tuple in order of first appearance
// and numbers them from 1.
func Collapse(rows []record.Raw, trim bool) []record.Distinct {
	seen := make(map[string]struct{}, len(rows))
	var out []record.Distinct
	for _, r := range rows {
		k := Key(r, trim)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if trim {
			r = trimmed(r)
		}
		r.Shard = ""
		out = append(out, record.Distinct{ID: int64(len(out) + 1), Raw: r})
	}
	return out
}

// Group is a set of raw rows sharing one identity tuple.
type Group struct {
	Key    string
	Rows   []record.Raw
	Shards []string
}

// Size is the number of raw rows in the group.
func (g Group) Size() int { return len(g.Rows) }

// Groups returns every identity group with more than one member, largest
// first.
func Groups(rows []record.Raw, trim bool) []Group {
	index := make(map[string]int)
	var all []Group
	for _, r := range rows {
		k := Key(r, trim)
		i, ok := index[k]
		if !ok {
			i = len(all)
			index[k] = i
			all = append(all, Group{Key: k})
		}
		all[i].Rows = append(all[i].Rows, r)
	}

	var out []Group
	for _, g := range all {
		if g.Size() < 2 {
			continue
		}
		g.Shards = shardsOf(g.Rows)
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Size() > out[j].Size() })
	return out
}

func shardsOf(rows []record.Raw) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		if r.Shard != "" {
			set[r.Shard] = struct{}{}
		}
	}
	shards := make([]string, 0, len(set))
	for s := range set {
		shards = append(shards, s)
	}
	sort.Strings(shards)
	return shards
}

// Stats summarises a collapse.
type Stats struct {
	RawRows         int `json:"raw_rows"`
	DistinctRows    int `json:"distinct_rows"`
	DuplicateGroups int `json:"duplicate_groups"`
	RedundantRows   int `json:"redundant_rows"`
}

// Summarize counts raw rows, distinct tuples and duplicate groups.
func Summarize(rows []record.Raw, trim bool) Stats {
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[Key(r, trim)]++
	}
	st := Stats{RawRows: len(rows), DistinctRows: len(counts)}
	for _, n := range counts {
		if n > 1 {
			st.DuplicateGroups++
			st.RedundantRows += n - 1
		}
	}
	return st
}
