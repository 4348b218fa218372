package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/pqgram/internal/config"
	"github.com/dgallion1/pqgram/internal/parser"
	"github.com/dgallion1/pqgram/internal/stats"
	"github.com/dgallion1/pqgram/internal/storage"
)

// Orchestrator manages the comparison job queue.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	profiler *Profiler
	store    *storage.ProfileRepo
	stats    *stats.Recorder
	log      *slog.Logger
	cfg      config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch the workers.
func NewOrchestrator(cfg config.Config, store *storage.ProfileRepo, rec *stats.Recorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		profiler: NewProfiler(parser.Options{
			KeepComments:      cfg.HTMLKeepComments,
			FallbackPdftotext: cfg.PDFFallbackPdftotext,
		}),
		store: store,
		stats: rec,
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.profiler, o.store, o.stats, o.log, o.cfg.CompareWorkers)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Profiler returns the profiler shared by the workers, for synchronous use
// by API handlers.
func (o *Orchestrator) Profiler() *Profiler {
	return o.profiler
}

// Stats returns the latency recorder, or nil.
func (o *Orchestrator) Stats() *stats.Recorder {
	return o.stats
}
