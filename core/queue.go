package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// job is one blocking operation queued for a worker, together with the
// channel its outcome is delivered on.
type job struct {
	fn  BlockingFunc
	out chan Outcome
}

// jobQueue is a mutex-guarded FIFO of pending worker jobs.
type jobQueue struct {
	mu   sync.Mutex
	jobs []job
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs: make([]job, 0, defaultQueueCap),
	}
}

func (q *jobQueue) Push(j job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
}

func (q *jobQueue) Pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	item := q.jobs[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.jobs[0] = job{}
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *jobQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]job, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]job, n, newCap)
	copy(newSlice, q.jobs)
	q.jobs = newSlice
}

func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *jobQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all jobs from the queue and releases references
func (q *jobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = make([]job, 0, defaultQueueCap)
}
