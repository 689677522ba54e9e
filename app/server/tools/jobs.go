package tools

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Job is a long-running tool call in flight.
type Job struct {
	ID      string          `json:"id"`
	Tool    string          `json:"tool"`
	Args    json.RawMessage `json:"arguments,omitempty"`
	Started time.Time       `json:"started"`

	done  atomic.Int64
	total atomic.Int64
}

// Progress records done out of total blocks. It matches scan.ProgressFunc.
func (j *Job) Progress(done, total int) {
	j.total.Store(int64(total))
	// batches may report out of order
	for {
		cur := j.done.Load()
		if int64(done) <= cur || j.done.CompareAndSwap(cur, int64(done)) {
			return
		}
	}
}

// JobStatus is a point-in-time view of a Job.
type JobStatus struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Args       json.RawMessage `json:"arguments,omitempty"`
	Started    time.Time       `json:"started"`
	ElapsedSec float64         `json:"elapsed_seconds"`
	Done       int64           `json:"blocks_done"`
	Total      int64           `json:"blocks_total"`
}

func (j *Job) status(now time.Time) JobStatus {
	return JobStatus{
		ID:         j.ID,
		Tool:       j.Tool,
		Args:       j.Args,
		Started:    j.Started,
		ElapsedSec: now.Sub(j.Started).Seconds(),
		Done:       j.done.Load(),
		Total:      j.total.Load(),
	}
}

// Jobs tracks in-flight long-running calls.
type Jobs struct {
	m    *xsync.Map[string, *Job]
	next atomic.Uint64
	now  func() time.Time
}

func NewJobs() *Jobs {
	return &Jobs{m: xsync.NewMap[string, *Job](), now: time.Now}
}

// Start registers a new job and returns it.
func (j *Jobs) Start(tool string, args json.RawMessage) *Job {
	job := &Job{
		ID:      strconv.FormatUint(j.next.Add(1), 10),
		Tool:    tool,
		Args:    args,
		Started: j.now(),
	}
	j.m.Store(job.ID, job)
	return job
}

// Finish forgets the job with the given id.
func (j *Jobs) Finish(id string) {
	j.m.Delete(id)
}

// Len is the number of jobs in flight.
func (j *Jobs) Len() int {
	return j.m.Size()
}

// Snapshot returns the status of every job in flight, oldest first.
func (j *Jobs) Snapshot() []JobStatus {
	now := j.now()
	out := []JobStatus{}
	j.m.Range(func(_ string, job *Job) bool {
		out = append(out, job.status(now))
		return true
	})
	sort.Slice(out, func(a, b int) bool {
		if out[a].Started.Equal(out[b].Started) {
			return out[a].ID < out[b].ID
		}
		return out[a].Started.Before(out[b].Started)
	})
	return out
}
