package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kakiii/kmatch/internal/domain/changes"
	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/domain/index"
	"github.com/kakiii/kmatch/internal/ports"
)

// Pipeline runs one ingest cycle: rows in, published artifacts out.
// Snapshot state is updated only after a successful publish, so a
// failed run is retried in full on the next attempt.
type Pipeline struct {
	Store    ports.SnapshotStore
	Detector *changes.Detector
	Builder  *dataset.Builder
	Writer   *dataset.Writer

	// Force publishes even when the source shows no semantic changes.
	Force bool

	log *slog.Logger
}

// NewPipeline assembles a pipeline over store and writer.
func NewPipeline(store ports.SnapshotStore, writer *dataset.Writer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		Store:    store,
		Detector: changes.NewDetector(log),
		Builder:  dataset.NewBuilder(log),
		Writer:   writer,
		log:      log,
	}
}

// RunResult reports what one pipeline run did.
type RunResult struct {
	Run     ports.Run
	Changes changes.Result

	// Build, Index and Write are zero/nil when publishing was skipped.
	Build dataset.BuildStats
	Index index.Stats
	Write *dataset.WriteResult
}

// Published is true when this run wrote new artifacts.
func (r *RunResult) Published() bool {
	return r.Write != nil
}

// Run ingests src: read rows, diff against the previous snapshot of the
// same source, and publish fresh artifacts when the register changed.
// Every completed comparison lands in the run ledger, published or not;
// runs that fail before comparing (unreachable source, unparsable file)
// only return an error.
func (p *Pipeline) Run(ctx context.Context, src ports.RowSource) (*RunResult, error) {
	started := time.Now().UTC()

	rows, raw, err := src.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	prevHash, prevRows, _, err := p.Store.LoadSnapshot(src.Name())
	if err != nil {
		p.log.Warn("previous snapshot unreadable, diffing against empty",
			"source", src.Name(), "error", err)
		prevHash, prevRows = "", nil
	}
	res := p.Detector.Detect(prevHash, prevRows, rows, raw)

	out := &RunResult{
		Changes: res,
		Run: ports.Run{
			ID:         uuid.NewString(),
			StartedAt:  started,
			Source:     src.Name(),
			SourceHash: res.Hash,
			RowCount:   len(rows),
			Added:      len(res.Added),
			Removed:    len(res.Removed),
			Modified:   len(res.Modified),
		},
	}

	if !res.HasChanges && !p.Force {
		p.log.Info("register unchanged, skipping publish",
			"source", src.Name(), "rows", len(rows))
	} else {
		set, bstats := p.Builder.Build(rows)
		out.Build = bstats
		if set.Len() == 0 {
			return nil, fmt.Errorf("source %s produced no valid records", src.Name())
		}

		idx, istats := index.Build(set, p.log)
		out.Index = istats

		wres, err := p.Writer.Write(set, idx, src.Name())
		if err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		out.Write = wres
		out.Run.Published = true
	}

	if err := p.Store.SaveSnapshot(src.Name(), res.Hash, rows); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	out.Run.FinishedAt = time.Now().UTC()
	if err := p.Store.SaveRun(out.Run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	p.log.Info("run recorded",
		"run", out.Run.ID,
		"source", out.Run.Source,
		"rows", out.Run.RowCount,
		"added", out.Run.Added,
		"removed", out.Run.Removed,
		"modified", out.Run.Modified,
		"published", out.Run.Published)
	return out, nil
}
