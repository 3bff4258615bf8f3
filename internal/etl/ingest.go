package etl

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sbr-consolidate/internal/debug"
	"github.com/sbr-consolidate/internal/normalize"
	"github.com/sbr-consolidate/internal/record"
	"github.com/sbr-consolidate/internal/store"
)

// Ingestor moves shards through staging into the cumulative raw set.
// Parsing runs concurrently; the staging cycle is serialised because the
// staging table is a single buffer.
type Ingestor struct {
	store         *store.Store
	positiveLabel string
	workers       int

	mu sync.Mutex
}

// NewIngestor creates an ingestor. workers bounds concurrent shard parsing.
func NewIngestor(s *store.Store, positiveLabel string, workers int) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	return &Ingestor{store: s, positiveLabel: positiveLabel, workers: workers}
}

// ShardFailure records a shard that was skipped.
type ShardFailure struct {
	Shard string `json:"shard"`
	Error string `json:"error"`
}

// Summary describes one IngestAll call.
type Summary struct {
	Shards        int            `json:"shards"`
	Ingested      []string       `json:"ingested"`
	Failed        []ShardFailure `json:"failed,omitempty"`
	RowsMerged    int64          `json:"rows_merged"`
	LabelsChanged int            `json:"labels_changed"`
}

// Ingest runs the clear → load → normalise → merge cycle for one parsed
// shard inside a single transaction. Cancellation is checked before the
// cycle starts; an started merge runs to completion.
func (in *Ingestor) Ingest(ctx context.Context, localDebug bool, runID string, shard *record.Shard) (int64, int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	ctx = context.WithoutCancel(ctx)

	defer debug.DebugTiming(localDebug, "ingest "+shard.Name)()

	st, err := in.store.BeginStaging(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer st.Rollback()

	if err := st.Clear(ctx); err != nil {
		return 0, 0, err
	}
	loaded, err := st.Load(ctx, shard)
	if err != nil {
		return 0, 0, err
	}
	changed, err := st.NormalizeLabels(ctx, func(v *string) record.Label {
		return normalize.LabelDebug(localDebug, v, in.positiveLabel)
	})
	if err != nil {
		return 0, 0, err
	}
	merged, err := st.Merge(ctx, runID, shard.Name)
	if err != nil {
		return 0, 0, err
	}
	if err := st.Commit(); err != nil {
		return 0, 0, err
	}

	debug.DebugOutput(localDebug, "%s: staged %d, relabelled %d, merged %d", shard.Name, loaded, changed, merged)
	return merged, changed, nil
}

// IngestAll parses the given shard files with a bounded worker pool and
// merges each parsed shard. Unparsable shards and shards the store rejects
// are reported in the summary and do not fail the call; only cancellation
// does.
func (in *Ingestor) IngestAll(ctx context.Context, localDebug bool, runID string, paths []string) (*Summary, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	summary := &Summary{Shards: len(paths)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			shard, err := ReadShard(localDebug, path)
			if err != nil {
				var se *ShardError
				if !errors.As(err, &se) {
					return err
				}
				zap.L().Warn("etl: shard skipped", zap.String("shard", se.Shard), zap.Error(se.Err))
				mu.Lock()
				summary.Failed = append(summary.Failed, ShardFailure{Shard: se.Shard, Error: se.Error()})
				mu.Unlock()
				return nil
			}

			merged, changed, err := in.Ingest(gctx, localDebug, runID, shard)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return eris.Wrapf(err, "etl: ingest %s", shard.Name)
				}
				// The staging transaction has rolled back; the raw set is
				// untouched by this shard.
				zap.L().Warn("etl: shard rejected by store", zap.String("shard", shard.Name), zap.Error(err))
				mu.Lock()
				summary.Failed = append(summary.Failed, ShardFailure{Shard: shard.Name, Error: err.Error()})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			summary.Ingested = append(summary.Ingested, shard.Name)
			summary.RowsMerged += merged
			summary.LabelsChanged += changed
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	sort.Strings(summary.Ingested)
	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Shard < summary.Failed[j].Shard })

	zap.L().Info("etl: ingestion finished",
		zap.Int("shards", summary.Shards),
		zap.Int("ingested", len(summary.Ingested)),
		zap.Int("failed", len(summary.Failed)),
		zap.Int64("rows_merged", summary.RowsMerged))
	return summary, nil
}
