// Package pipeline runs the consolidation stages in order and tracks each
// run in the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/completeness"
	"github.com/sbr-consolidate/internal/config"
	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/dedup"
	"github.com/sbr-consolidate/internal/etl"
	"github.com/sbr-consolidate/internal/export"
	"github.com/sbr-consolidate/internal/finalize"
	"github.com/sbr-consolidate/internal/record"
	"github.com/sbr-consolidate/internal/store"
	"github.com/sbr-consolidate/internal/validation"
)

// ErrNoShards is returned when a run finds nothing to ingest.
var ErrNoShards = eris.New("no shard files to ingest")

// Pipeline wires the stages to one store and configuration.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	ingestor  *etl.Ingestor
	validator *validation.Validator
	finalizer *finalize.Finalizer
}

// New creates a pipeline.
func New(cfg *config.Config, s *store.Store) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     s,
		ingestor:  etl.NewIngestor(s, cfg.PositiveLabel, cfg.IngestWorkers),
		validator: validation.NewValidator(cfg.SimilarityThreshold, cfg.BoundingBox),
		finalizer: finalize.NewFinalizer(cfg.MaxLength),
	}
}

// Store returns the backing store.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Ingest merges the given shard files into the cumulative raw set.
func (p *Pipeline) Ingest(ctx context.Context, localDebug bool, runID string, paths []string) (*etl.Summary, error) {
	defer debug.DebugTiming(localDebug, "ingest")()
	return p.ingestor.IngestAll(ctx, localDebug, runID, paths)
}

// IngestDir ingests every CSV shard of dir.
func (p *Pipeline) IngestDir(ctx context.Context, localDebug bool, runID, dir string) (*etl.Summary, error) {
	paths, err := etl.ListShards(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, eris.Wrapf(ErrNoShards, "pipeline: %s", dir)
	}
	return p.Ingest(ctx, localDebug, runID, paths)
}

// Check compares the query list with the shard directory and stores the
// resulting re-scrape tasks.
func (p *Pipeline) Check(ctx context.Context, localDebug bool, queryList, shardDir string) (*completeness.Report, error) {
	defer debug.DebugTiming(localDebug, "completeness check")()

	expected, err := completeness.LoadQueryList(queryList)
	if err != nil {
		return nil, err
	}
	checker, err := completeness.NewChecker(p.cfg.PartitionPattern, p.cfg.LowRowRatio, p.cfg.IngestWorkers)
	if err != nil {
		return nil, err
	}
	report, err := checker.Check(ctx, localDebug, expected, shardDir)
	if err != nil {
		return nil, err
	}
	if err := p.store.ReplaceRescrapeTasks(ctx, report.Tasks); err != nil {
		return nil, err
	}
	return report, nil
}

// Dedup rebuilds the distinct set and returns its size.
func (p *Pipeline) Dedup(ctx context.Context, localDebug bool) (int, error) {
	defer debug.DebugTiming(localDebug, "dedup")()

	n, err := p.store.BuildDistinct(ctx, p.cfg.DedupNormalizeFields)
	if err != nil {
		return 0, err
	}

	if localDebug {
		raw, err := p.store.RawRecords(ctx)
		if err != nil {
			return 0, err
		}
		stats := dedup.Summarize(raw, p.cfg.DedupNormalizeFields)
		debug.DebugOutput(localDebug, "raw %d, distinct %d, duplicate groups %d, redundant rows %d",
			stats.RawRows, stats.DistinctRows, stats.DuplicateGroups, stats.RedundantRows)
		if stats.DistinctRows != n {
			zap.L().Warn("pipeline: distinct count differs from in-memory collapse",
				zap.Int("sql", n), zap.Int("memory", stats.DistinctRows))
		}
	}
	return n, nil
}

// Duplicates returns the identity groups with more than one raw row.
func (p *Pipeline) Duplicates(ctx context.Context) ([]dedup.Group, error) {
	rows, err := p.store.DuplicateRows(ctx, p.cfg.DedupNormalizeFields)
	if err != nil {
		return nil, err
	}
	raw := make([]record.Raw, len(rows))
	for i, r := range rows {
		raw[i] = r.Raw
	}
	return dedup.Groups(raw, p.cfg.DedupNormalizeFields), nil
}

// Validate scores every distinct record and stores the verdicts.
func (p *Pipeline) Validate(ctx context.Context, localDebug bool) (validation.Stats, error) {
	defer debug.DebugTiming(localDebug, "validate")()

	rows, err := p.store.DistinctRecords(ctx)
	if err != nil {
		return validation.Stats{}, err
	}
	verdicts, stats := p.validator.ValidateAll(localDebug, rows)
	if err := p.store.ReplaceValidation(ctx, verdicts); err != nil {
		return validation.Stats{}, err
	}
	return stats, nil
}

// Finalize types the validated Found records, stores them and writes both
// exports into outDir.
func (p *Pipeline) Finalize(ctx context.Context, localDebug bool, outDir string) (*export.Result, finalize.Stats, error) {
	defer debug.DebugTiming(localDebug, "finalize")()

	rows, err := p.store.ValidatedFound(ctx)
	if err != nil {
		return nil, finalize.Stats{}, err
	}
	finals, stats := p.finalizer.Finalize(localDebug, rows)
	if err := p.store.ReplaceFinal(ctx, finals); err != nil {
		return nil, stats, err
	}

	res, err := export.NewExporter(outDir).Export(finals)
	if err != nil {
		return nil, stats, err
	}
	return res, stats, nil
}

// RunOptions selects the inputs of a full run.
type RunOptions struct {
	Label     string
	Paths     []string // shard files; ShardDir is scanned when empty
	ShardDir  string
	QueryList string // completeness check is skipped when the file is absent
	OutputDir string
}

// Run executes check → ingest → dedup → validate → finalize as one tracked
// run.
func (p *Pipeline) Run(ctx context.Context, localDebug bool, opts RunOptions) (*store.Run, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if opts.Label == "" {
		opts.Label = "run-" + time.Now().UTC().Format("20060102-150405")
	}

	run, err := p.store.CreateRun(ctx, opts.Label, "")
	if err != nil {
		return nil, err
	}
	var notes []string
	logger := zap.L().With(zap.String("run_id", run.ID))

	if opts.QueryList != "" && opts.ShardDir != "" {
		if _, statErr := os.Stat(opts.QueryList); statErr == nil {
			report, err := p.Check(ctx, localDebug, opts.QueryList, opts.ShardDir)
			if err != nil {
				return run, eris.Wrap(err, "pipeline: completeness check")
			}
			if !report.Complete() {
				notes = append(notes, fmt.Sprintf("%d re-scrape tasks", len(report.Tasks)))
			}
		} else {
			logger.Info("pipeline: no query list, completeness check skipped", zap.String("path", opts.QueryList))
		}
	}

	var summary *etl.Summary
	if len(opts.Paths) > 0 {
		summary, err = p.Ingest(ctx, localDebug, run.ID, opts.Paths)
	} else {
		summary, err = p.IngestDir(ctx, localDebug, run.ID, opts.ShardDir)
	}
	if err != nil {
		return run, eris.Wrap(err, "pipeline: ingest")
	}
	run.Shards = summary.Shards
	run.FailedShards = len(summary.Failed)
	for _, f := range summary.Failed {
		notes = append(notes, "skipped "+f.Shard)
	}

	if run.DistinctRows, err = p.Dedup(ctx, localDebug); err != nil {
		return run, eris.Wrap(err, "pipeline: dedup")
	}

	stats, err := p.Validate(ctx, localDebug)
	if err != nil {
		return run, eris.Wrap(err, "pipeline: validate")
	}
	run.ValidatedRows = stats.Found

	res, _, err := p.Finalize(ctx, localDebug, opts.OutputDir)
	if err != nil {
		return run, eris.Wrap(err, "pipeline: finalize")
	}
	run.FinalRows = res.Rows

	counts, err := p.store.Counts(ctx)
	if err != nil {
		return run, err
	}
	run.RawRows = counts.Raw
	run.Notes = strings.Join(notes, "; ")

	if err := p.store.CompleteRun(ctx, run); err != nil {
		return run, err
	}

	logger.Info("pipeline: run complete",
		zap.Int("shards", run.Shards),
		zap.Int("failed_shards", run.FailedShards),
		zap.Int("raw", run.RawRows),
		zap.Int("distinct", run.DistinctRows),
		zap.Int("found", run.ValidatedRows),
		zap.Int("final", run.FinalRows))
	return run, nil
}

// IsNoShards reports whether err means there was nothing to ingest.
func IsNoShards(err error) bool {
	return errors.Is(err, ErrNoShards)
}
