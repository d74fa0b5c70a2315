package geolocation

import (
	"sync"

	drifterrors "github.com/go-drift/geolocation/pkg/errors"
)

// Executor runs controller jobs. Implementations must run jobs one at a
// time and in submission order. Submission must not block on the job.
type Executor func(job func())

// NewSerialExecutor returns an Executor that needs no background goroutine:
// the goroutine that submits into an idle executor drains the queue, and
// jobs submitted while it drains (including from inside a job) run after the
// current job returns.
func NewSerialExecutor() Executor {
	q := &serialQueue{}
	return q.submit
}

type serialQueue struct {
	mu       sync.Mutex
	jobs     []func()
	draining bool
}

func (q *serialQueue) submit(job func()) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		next := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		run(next)
	}
}

func run(job func()) {
	defer drifterrors.Recover("geolocation.executor")
	job()
}
