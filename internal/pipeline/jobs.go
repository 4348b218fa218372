package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/pqgram/internal/compare"
	"github.com/dgallion1/pqgram/internal/errs"
	"github.com/dgallion1/pqgram/internal/pqgram"
	"github.com/dgallion1/pqgram/internal/tree"
)

// Mode selects the batch comparison a job runs.
type Mode string

const (
	// ModeMatrix compares every pair of the left documents.
	ModeMatrix Mode = "matrix"
	// ModeCross compares every left document with every right document.
	ModeCross Mode = "cross"
	// ModeNearest ranks the right documents (or the stored profiles of the
	// same shape) by distance to the single left document.
	ModeNearest Mode = "nearest"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMatrix, ModeCross, ModeNearest:
		return m, nil
	case "":
		return ModeMatrix, nil
	default:
		return "", errs.New(errs.CodeInvalidInput, "unknown mode %q (want matrix, cross or nearest)", s)
	}
}

// Validate checks a job request before it is queued. maxTrees bounds the
// total number of documents; 0 means no bound.
func Validate(mode Mode, params Params, nLeft, nRight, maxTrees int) error {
	if err := pqgram.ValidateShape(params.P, params.Q); err != nil {
		return err
	}
	if params.TopK < 0 {
		return errs.New(errs.CodeInvalidInput, "top_k must not be negative")
	}
	if nLeft == 0 {
		return errs.New(errs.CodeInvalidInput, "no documents to compare")
	}
	if maxTrees > 0 && nLeft+nRight > maxTrees {
		return errs.New(errs.CodeInvalidInput, "%d documents exceed the limit of %d", nLeft+nRight, maxTrees)
	}
	switch mode {
	case ModeMatrix:
		if nRight > 0 {
			return errs.New(errs.CodeInvalidInput, "matrix mode takes a single collection")
		}
	case ModeCross:
		if nRight == 0 {
			return errs.New(errs.CodeInvalidInput, "cross mode needs a second collection")
		}
	case ModeNearest:
		if nLeft != 1 {
			return errs.New(errs.CodeInvalidInput, "nearest mode takes exactly one query document, got %d", nLeft)
		}
		if nRight == 0 && !params.UseStore {
			return errs.New(errs.CodeInvalidInput, "nearest mode needs candidates or use_store")
		}
	default:
		return errs.New(errs.CodeInvalidInput, "unknown mode %q", mode)
	}
	return nil
}

// JobStatus represents the state of a comparison job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusProfiling JobStatus = "profiling"
	StatusComparing JobStatus = "comparing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Document is one uploaded file.
type Document struct {
	Name string
	Data []byte
}

// Params are the per-job comparison settings.
type Params struct {
	P         int  `json:"p"`
	Q         int  `json:"q"`
	LeafGrams bool `json:"leaf_grams"`
	// Partial keeps going past documents that fail to parse or profile.
	Partial bool `json:"partial"`
	// TopK truncates the ranked results; 0 keeps all of them. Matrix and
	// cross results are sorted by distance when TopK is set.
	TopK int `json:"top_k,omitempty"`
	// UseStore makes a nearest job with no right documents rank the stored
	// profiles of the same shape instead.
	UseStore bool `json:"use_store,omitempty"`
}

// Job tracks the state of a single comparison run.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Mode   Mode      `json:"mode"`
	Params Params    `json:"params"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	left   []Document
	right  []Document
	result *Result
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	Documents   int      `json:"documents"`
	Profiled    int      `json:"profiled"`
	Comparisons int      `json:"comparisons"`
	Compared    int      `json:"compared"`
	Errors      []string `json:"errors"`
}

// Result is the output of a finished job. Left and Right name the documents
// that Pair.I/Pair.J and Match.Index refer to. Labels describes every label
// seen, for interpreting gram tokens.
type Result struct {
	Left       []string             `json:"left"`
	Right      []string             `json:"right,omitempty"`
	RightIDs   []string             `json:"right_ids,omitempty"`
	Pairs      []compare.Pair       `json:"pairs,omitempty"`
	Matches    []compare.Match      `json:"matches,omitempty"`
	Labels     tree.LabelMap[int64] `json:"labels,omitempty"`
	DurationMs int64                `json:"duration_ms"`
}

// NewJob creates a queued job with a fresh id.
func NewJob(mode Mode, params Params, left, right []Document) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Mode:      mode,
		Params:    params,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		left:      left,
		right:     right,
		Progress:  Progress{Documents: len(left) + len(right)},
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// HasErrors reports whether any error was recorded.
func (j *Job) HasErrors() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.errors) > 0
}

// SetProfiled records how many documents have been profiled. Progress
// callbacks arrive out of order, so the count never goes backwards.
func (j *Job) SetProfiled(done, _ int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if done > j.Progress.Profiled {
		j.Progress.Profiled = done
	}
	j.UpdatedAt = time.Now()
}

// SetComparisons records the number of comparisons the job will run.
func (j *Job) SetComparisons(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Comparisons = n
	j.UpdatedAt = time.Now()
}

// SetCompared records completed comparisons, like SetProfiled.
func (j *Job) SetCompared(done, _ int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if done > j.Progress.Compared {
		j.Progress.Compared = done
	}
	j.UpdatedAt = time.Now()
}

// Documents returns the uploaded documents.
func (j *Job) Documents() (left, right []Document) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.left, j.right
}

// SetResult stores the result and releases the uploaded bytes.
func (j *Job) SetResult(r *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = r
	j.left, j.right = nil, nil
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Mode      Mode      `json:"mode"`
	Params    Params    `json:"params"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	Result    *Result   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state. The result is shared,
// not copied; it is never modified after SetResult.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	list := make([]string, len(j.errors))
	copy(list, j.errors)
	p := j.Progress
	p.Errors = list
	return JobSnapshot{
		ID:        j.ID,
		Mode:      j.Mode,
		Params:    j.Params,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		Result:    j.result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
