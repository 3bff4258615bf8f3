// Package completeness compares the queries scraping workers were asked to
// run with what their shards actually contain, and turns the gaps into a
// scoped re-scrape task list.
package completeness

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/etl"
	"github.com/sbr-consolidate/internal/record"
)

// Unit is one expected unit of scraping work.
type Unit struct {
	Query     string `json:"query"`
	Partition string `json:"partition,omitempty"`
}

// Shard states.
const (
	StatusOK         = "ok"
	StatusIncomplete = record.ReasonIncomplete
	StatusCorrupt    = record.ReasonCorrupt
)

// ShardStatus is the checker's view of one shard file.
type ShardStatus struct {
	Name      string   `json:"name"`
	Partition string   `json:"partition,omitempty"`
	Rows      int      `json:"rows"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Queries   []string `json:"-"`
}

// Report is the outcome of one completeness check.
type Report struct {
	Expected   []string              `json:"expected"`
	Produced   []string              `json:"produced"`
	Missing    []string              `json:"missing"`
	Unexpected []string              `json:"unexpected,omitempty"`
	Shards     []ShardStatus         `json:"shards"`
	Tasks      []record.RescrapeTask `json:"tasks"`
}

// Complete reports whether nothing needs re-scraping.
func (r *Report) Complete() bool {
	return len(r.Tasks) == 0
}

// Checker holds the thresholds of a completeness check.
type Checker struct {
	partition   *regexp.Regexp
	lowRowRatio float64
	workers     int
}

// NewChecker compiles the partition pattern. A shard whose row count is
// below lowRowRatio times the mean is flagged incomplete; zero disables it.
func NewChecker(partitionPattern string, lowRowRatio float64, workers int) (*Checker, error) {
	re, err := regexp.Compile(partitionPattern)
	if err != nil {
		return nil, eris.Wrap(err, "completeness: partition pattern")
	}
	if workers < 1 {
		workers = 1
	}
	return &Checker{partition: re, lowRowRatio: lowRowRatio, workers: workers}, nil
}

// Partition extracts the partition id from a shard file name: the first
// capture group when the pattern has one, the whole match otherwise.
func (c *Checker) Partition(shardName string) string {
	base := strings.TrimSuffix(filepath.Base(shardName), filepath.Ext(shardName))
	m := c.partition.FindStringSubmatch(base)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return m[1]
	default:
		return m[0]
	}
}

// Check reads every shard in shardDir and evaluates it against expected.
func (c *Checker) Check(ctx context.Context, localDebug bool, expected []Unit, shardDir string) (*Report, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	paths, err := etl.ListShards(shardDir)
	if err != nil {
		return nil, err
	}

	statuses := make([]ShardStatus, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := ShardStatus{Name: filepath.Base(path), Partition: c.Partition(path), Status: StatusOK}

			shard, err := etl.ReadShard(localDebug, path)
			if err != nil {
				var se *etl.ShardError
				if !errors.As(err, &se) {
					return err
				}
				st.Status = StatusCorrupt
				st.Error = se.Error()
			} else {
				st.Rows = len(shard.Rows)
				st.Queries = shardQueries(shard)
			}

			mu.Lock()
			statuses[i] = st
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "completeness: read shards")
	}

	report := c.Evaluate(expected, statuses)
	debug.DebugOutput(localDebug, "expected %d, produced %d, missing %d, tasks %d",
		len(report.Expected), len(report.Produced), len(report.Missing), len(report.Tasks))
	zap.L().Info("completeness: check finished",
		zap.Int("shards", len(statuses)),
		zap.Int("missing", len(report.Missing)),
		zap.Int("tasks", len(report.Tasks)))
	return report, nil
}

func shardQueries(shard *record.Shard) []string {
	set := make(map[string]struct{})
	for _, r := range shard.Rows {
		if r.Query == nil {
			continue
		}
		if q := strings.TrimSpace(*r.Query); q != "" {
			set[q] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Evaluate computes the report from already-read shard statuses. Shards with
// Status StatusCorrupt contribute no queries; row-count outliers among the
// rest are re-labelled StatusIncomplete.
func (c *Checker) Evaluate(expected []Unit, shards []ShardStatus) *Report {
	c.flagIncomplete(shards)

	expectedSet := make(map[string]struct{})
	for _, u := range expected {
		expectedSet[u.Query] = struct{}{}
	}
	producedSet := make(map[string]struct{})
	for _, s := range shards {
		if s.Status == StatusCorrupt {
			continue
		}
		for _, q := range s.Queries {
			producedSet[q] = struct{}{}
		}
	}

	report := &Report{Expected: sortedKeys(expectedSet), Shards: shards}
	unexpected := make(map[string]struct{})
	for q := range producedSet {
		if _, ok := expectedSet[q]; ok {
			report.Produced = append(report.Produced, q)
		} else {
			unexpected[q] = struct{}{}
		}
	}
	sort.Strings(report.Produced)
	report.Unexpected = sortedKeys(unexpected)
	for _, q := range report.Expected {
		if _, ok := producedSet[q]; !ok {
			report.Missing = append(report.Missing, q)
		}
	}

	report.Tasks = buildTasks(expected, shards, producedSet)
	return report
}

func (c *Checker) flagIncomplete(shards []ShardStatus) {
	if c.lowRowRatio <= 0 {
		return
	}
	total, n := 0, 0
	for _, s := range shards {
		if s.Status != StatusCorrupt {
			total += s.Rows
			n++
		}
	}
	if n == 0 || total == 0 {
		return
	}
	floor := c.lowRowRatio * float64(total) / float64(n)
	for i := range shards {
		if shards[i].Status == StatusOK && float64(shards[i].Rows) < floor {
			shards[i].Status = StatusIncomplete
		}
	}
}

// buildTasks scopes re-scraping to the failing units only: the units of
// corrupt or incomplete partitions, then every remaining missing unit.
func buildTasks(expected []Unit, shards []ShardStatus, produced map[string]struct{}) []record.RescrapeTask {
	byPartition := make(map[string][]Unit)
	for _, u := range expected {
		if u.Partition != "" {
			byPartition[u.Partition] = append(byPartition[u.Partition], u)
		}
	}

	var tasks []record.RescrapeTask
	seen := make(map[Unit]struct{})
	add := func(u Unit, reason, shard string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		tasks = append(tasks, record.RescrapeTask{Query: u.Query, Partition: u.Partition, Reason: reason, Shard: shard})
	}

	sorted := append([]ShardStatus(nil), shards...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, s := range sorted {
		if s.Status == StatusOK {
			continue
		}
		units := byPartition[s.Partition]
		if s.Partition == "" || len(units) == 0 {
			for _, q := range s.Queries {
				units = append(units, Unit{Query: q, Partition: s.Partition})
			}
		}
		if len(units) == 0 {
			// Nothing known about the shard's work: re-run the partition.
			add(Unit{Partition: s.Partition}, s.Status, s.Name)
			continue
		}
		for _, u := range units {
			add(u, s.Status, s.Name)
		}
	}

	for _, u := range expected {
		if _, ok := produced[u.Query]; !ok {
			add(u, record.ReasonMissing, "")
		}
	}
	return tasks
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadQueryList reads the expected units from a CSV of query[,partition].
// A leading header row naming the query column is skipped, blank queries are
// ignored and repeated units are kept once.
func LoadQueryList(path string) ([]Unit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "completeness: open query list %s", path)
	}
	defer file.Close()
	return ReadQueryList(file)
}

// ReadQueryList is LoadQueryList over a reader.
func ReadQueryList(r io.Reader) ([]Unit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var units []Unit
	seen := make(map[Unit]struct{})
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "completeness: query list line %d", line)
		}
		if len(row) == 0 {
			continue
		}
		query := strings.TrimSpace(strings.TrimPrefix(row[0], "\ufeff"))
		if line == 1 {
			if col, ok := record.CanonicalColumn(query); ok && col == record.ColQuery {
				continue
			}
		}
		if query == "" {
			continue
		}
		u := Unit{Query: query}
		if len(row) > 1 {
			u.Partition = strings.TrimSpace(row[1])
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		units = append(units, u)
	}
	return units, nil
}

// WriteTasks writes the task list as CSV with a header row.
func WriteTasks(w io.Writer, tasks []record.RescrapeTask) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"query", "partition", "reason", "shard"}); err != nil {
		return eris.Wrap(err, "completeness: write task header")
	}
	for _, t := range tasks {
		if err := writer.Write([]string{t.Query, t.Partition, t.Reason, t.Shard}); err != nil {
			return eris.Wrap(err, "completeness: write task")
		}
	}
	writer.Flush()
	return eris.Wrap(writer.Error(), "completeness: flush tasks")
}
