package workflow

import "sync"

// jobLocks serializes mutations per job id. Operations on different jobs
// never contend; two operations on the same job run one at a time, so the
// store's compare-and-swap only fires across processes.
type jobLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newJobLocks() *jobLocks {
	return &jobLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for jobID and returns its release func.
func (l *jobLocks) lock(jobID string) func() {
	l.mu.Lock()
	m, ok := l.locks[jobID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[jobID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
