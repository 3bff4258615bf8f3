package dedup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbr-consolidate/internal/record"
)

func sp(s string) *string { return &s }

func row(shard, name string) record.Raw {
	return record.Raw{
		Shard:      shard,
		Query:      sp("kopi"),
		Name:       sp(name),
		Latitude:   sp("-6.91"),
		Longitude:  sp("107.61"),
		Validation: sp("Found"),
	}
}

func TestCollapseDropsExactDuplicates(t *testing.T) {
	rows := []record.Raw{row("a.csv", "A"), row("b.csv", "B"), row("b.csv", "A"), row("c.csv", "A")}

	got := Collapse(rows, false)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0].ID)
	assert.Equal(t, "A", *got[0].Name)
	assert.EqualValues(t, 2, got[1].ID)
	assert.Equal(t, "B", *got[1].Name)
}

func TestCollapseIsStrict(t *testing.T) {
	a := row("a.csv", "Kopi Aroma")
	b := row("a.csv", "Kopi Aroma ")
	c := row("a.csv", "kopi aroma")
	d := row("a.csv", "Kopi Aroma")
	d.Phone = sp("")

	assert.Len(t, Collapse([]record.Raw{a, b, c, d}, false), 4)
}

func TestCollapseTrimOption(t *testing.T) {
	a := row("a.csv", "Kopi Aroma")
	b := row("a.csv", "  Kopi Aroma ")

	got := Collapse([]record.Raw{a, b}, true)
	require.Len(t, got, 1)
	assert.Equal(t, "Kopi Aroma", *got[0].Name)
}

func TestCollapseGroupsNulls(t *testing.T) {
	a := record.Raw{Name: sp("X")}
	b := record.Raw{Name: sp("X")}
	assert.Len(t, Collapse([]record.Raw{a, b}, false), 1)
}

func TestCollapseIdempotent(t *testing.T) {
	rows := randomRows(rand.New(rand.NewSource(7)), 200)

	once := Collapse(rows, false)
	again := make([]record.Raw, len(once))
	for i, d := range once {
		again[i] = d.Raw
	}
	twice := Collapse(again, false)

	require.Len(t, twice, len(once))
	for i := range once {
		assert.True(t, record.SameIdentity(once[i].Raw, twice[i].Raw))
	}
}

func TestCollapseUniqueAndComplete(t *testing.T) {
	rows := randomRows(rand.New(rand.NewSource(42)), 300)
	got := Collapse(rows, false)

	keys := make(map[string]bool)
	for _, d := range got {
		k := record.IdentityKey(d.Raw)
		assert.False(t, keys[k], "tuple appears twice in distinct set")
		keys[k] = true
	}
	for _, r := range rows {
		assert.True(t, keys[record.IdentityKey(r)], "raw tuple missing from distinct set")
	}
}

func TestGroups(t *testing.T) {
	rows := []record.Raw{
		row("a.csv", "A"), row("b.csv", "A"), row("b.csv", "A"),
		row("a.csv", "B"), row("c.csv", "B"),
		row("a.csv", "C"),
	}

	groups := Groups(rows, false)
	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups[0].Size())
	assert.Equal(t, []string{"a.csv", "b.csv"}, groups[0].Shards)
	assert.Equal(t, 2, groups[1].Size())
	assert.Equal(t, []string{"a.csv", "c.csv"}, groups[1].Shards)
}

func TestSummarize(t *testing.T) {
	rows := []record.Raw{row("a", "A"), row("b", "A"), row("c", "A"), row("a", "B")}
	assert.Equal(t, Stats{RawRows: 4, DistinctRows: 2, DuplicateGroups: 1, RedundantRows: 2}, Summarize(rows, false))
}

func randomRows(rng *rand.Rand, n int) []record.Raw {
	names := []string{"A", "B", "C", "D"}
	labels := []string{"Found", "NotFound"}
	rows := make([]record.Raw, n)
	for i := range rows {
		r := record.Raw{
			Name:       sp(names[rng.Intn(len(names))]),
			Validation: sp(labels[rng.Intn(len(labels))]),
		}
		if rng.Intn(3) > 0 {
			r.Phone = sp(names[rng.Intn(len(names))])
		}
		rows[i] = r
	}
	return rows
}
