package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/pqgram/internal/compare"
	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/labels"
	"github.com/dgallion1/pqgram/internal/metrics"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/stats"
	"github.com/dgallion1/pqgram/internal/storage"
	"github.com/dgallion1/pqgram/internal/tree"
)

// Worker processes a single comparison job.
type Worker struct {
	profiler *Profiler
	store    *storage.ProfileRepo
	stats    *stats.Recorder
	log      *slog.Logger

	compareWorkers int
}

// NewWorker creates a worker. store may be nil, in which case nearest jobs
// cannot fall back to stored profiles.
func NewWorker(profiler *Profiler, store *storage.ProfileRepo, rec *stats.Recorder, log *slog.Logger, compareWorkers int) *Worker {
	return &Worker{
		profiler:       profiler,
		store:          store,
		stats:          rec,
		log:            log,
		compareWorkers: compareWorkers,
	}
}

// Process runs parse, profile and compare for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With("job_id", job.ID, "mode", job.Mode)
	params := job.Params
	left, right := job.Documents()

	fail := func(phase string, err error) {
		log.Error("job failed", "phase", phase, "error", err)
		job.AddError(fmt.Sprintf("%s: %s", phase, err))
		job.SetStatus(StatusFailed, phase)
		metrics.RecordJob(string(StatusFailed))
	}

	if err := Validate(job.Mode, params, len(left), len(right), 0); err != nil {
		fail("validate", err)
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	reg := labels.NewRegistry[int64]()
	leftTrees, err := w.trees(job, log, 0, left, reg)
	if err != nil {
		fail("parsing", err)
		return
	}
	rightTrees, err := w.trees(job, log, 1, right, reg)
	if err != nil {
		fail("parsing", err)
		return
	}

	// Phase 2: Profile
	job.SetStatus(StatusProfiling, "profiling")
	leftProfiles, err := w.profiles(ctx, job, log, 0, leftTrees, params, job.SetProfiled)
	if err != nil {
		fail("profiling", err)
		return
	}
	offset := len(left)
	rightProfiles, err := w.profiles(ctx, job, log, 1, rightTrees, params, func(done, total int) {
		job.SetProfiled(offset+done, offset+total)
	})
	if err != nil {
		fail("profiling", err)
		return
	}

	result := &Result{Left: names(left), Right: names(right)}
	if job.Mode == ModeNearest && len(right) == 0 && params.UseStore {
		rightProfiles, err = w.stored(params, reg, result)
		if err != nil {
			fail("loading", err)
			return
		}
	}

	// Phase 3: Compare
	job.SetStatus(StatusComparing, "comparing")
	eng := w.engine(params, job.SetCompared)
	cmpStart := time.Now()
	var distances []float64

	switch job.Mode {
	case ModeMatrix, ModeCross:
		var pairs []compare.Pair
		if job.Mode == ModeMatrix {
			job.SetComparisons(compare.MatrixSize(len(leftProfiles)))
			pairs, err = eng.Matrix(ctx, leftProfiles)
		} else {
			job.SetComparisons(compare.CrossSize(len(leftProfiles), len(rightProfiles)))
			pairs, err = eng.Cross(ctx, leftProfiles, rightProfiles)
		}
		if err != nil {
			fail("comparing", err)
			return
		}
		for _, p := range pairs {
			distances = append(distances, p.Distance)
		}
		if params.TopK > 0 {
			compare.SortPairs(pairs)
			pairs = pairs[:min(params.TopK, len(pairs))]
		}
		result.Pairs = pairs

	case ModeNearest:
		if leftProfiles[0] == nil {
			fail("comparing", errs.New(errs.CodeInvalidInput, "query document %s has no profile", left[0].Name))
			return
		}
		job.SetComparisons(len(rightProfiles))
		matches, err := eng.Nearest(ctx, leftProfiles[0], rightProfiles)
		if err != nil {
			fail("comparing", err)
			return
		}
		for _, m := range matches {
			distances = append(distances, m.Distance)
		}
		result.Matches = compare.Top(matches, params.TopK)
	}

	elapsed := time.Since(cmpStart)
	metrics.RecordBatch(string(job.Mode), len(distances), elapsed)
	metrics.RecordDistances(distances...)
	if w.stats != nil {
		w.stats.Record(string(job.Mode), elapsed, len(distances))
	}

	result.Labels = reg.Snapshot()
	result.DurationMs = time.Since(start).Milliseconds()
	job.SetResult(result)
	log.Info("comparison complete", "comparisons", len(distances), "labels", len(result.Labels), "duration_ms", result.DurationMs)

	if job.HasErrors() {
		job.SetStatus(StatusPartial, "done")
		metrics.RecordJob(string(StatusPartial))
		return
	}
	job.SetStatus(StatusCompleted, "done")
	metrics.RecordJob(string(StatusCompleted))
}

// trees parses and builds every document of one collection. In partial mode
// failing documents are recorded on the job and left nil.
func (w *Worker) trees(job *Job, log *slog.Logger, collection int, docs []Document, reg *labels.Registry[int64]) ([]*tree.Tree[int64], error) {
	out := make([]*tree.Tree[int64], len(docs))
	for i, doc := range docs {
		t, lm, err := w.profiler.Tree(doc)
		if err == nil {
			err = reg.Merge(lm)
		}
		if err != nil {
			ie := &compare.IndexError{Collection: collection, Index: i, Err: fmt.Errorf("%s: %w", doc.Name, err)}
			if !job.Params.Partial {
				return nil, ie
			}
			log.Warn("document skipped", "document", doc.Name, "error", err)
			job.AddError(ie.Error())
			continue
		}
		out[i] = t
	}
	return out, nil
}

// profiles extracts the profiles of one collection on the engine's workers.
func (w *Worker) profiles(ctx context.Context, job *Job, log *slog.Logger, collection int, trees []*tree.Tree[int64], params Params, progress compare.Progress) ([]*pqgram.Profile[int64], error) {
	eng := w.engine(params, progress)
	out, err := eng.Profiles(ctx, collection, trees, params.P, params.Q, shapeOptions(params.LeafGrams)...)

	var failures compare.Failures
	if errors.As(err, &failures) {
		for _, f := range failures {
			// Documents that never produced a tree were reported while parsing.
			if trees[f.Index] == nil {
				continue
			}
			log.Warn("profile skipped", "collection", collection, "index", f.Index, "error", f.Err)
			job.AddError(f.Error())
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	n := 0
	for _, p := range out {
		if p != nil {
			n++
		}
	}
	metrics.RecordProfiles("job", n)
	return out, nil
}

// stored loads the stored profiles with the job's shape as the right-hand
// collection of a nearest job.
func (w *Worker) stored(params Params, reg *labels.Registry[int64], result *Result) ([]*pqgram.Profile[int64], error) {
	if w.store == nil {
		return nil, errs.New(errs.CodeUnsupported, "no profile store configured")
	}
	sps, err := w.store.ListShape(params.P, params.Q, params.LeafGrams)
	if err != nil {
		return nil, err
	}
	out := make([]*pqgram.Profile[int64], len(sps))
	result.Right = make([]string, len(sps))
	result.RightIDs = make([]string, len(sps))
	for i, sp := range sps {
		out[i] = sp.Profile
		result.Right[i] = sp.Name
		result.RightIDs[i] = sp.ID
		if err := reg.Merge(sp.Labels); err != nil {
			w.log.Warn("stored label map conflicts", "profile_id", sp.ID, "error", err)
		}
	}
	metrics.RecordProfiles("store", len(sps))
	return out, nil
}

func (w *Worker) engine(params Params, progress compare.Progress) *compare.Engine[int64] {
	opts := []compare.Option[int64]{
		compare.WithWorkers[int64](w.compareWorkers),
		compare.WithProgress[int64](progress),
	}
	if params.Partial {
		opts = append(opts, compare.WithPartial[int64]())
	}
	return compare.New(opts...)
}

func names(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}
