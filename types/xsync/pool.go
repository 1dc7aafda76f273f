package xsync

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Pool is a shared worker-thread pool: a fixed number of goroutines
// executing scheduled units of work. Callers that need to wait for their
// units use Fanout, which blocks until every unit it scheduled completes.
type Pool struct {
	tasks chan func()

	muClosed sync.Mutex
	closed   bool
}

// NewPool creates a pool with the given number of workers.
// If numWorkers <= 0, it defaults to runtime.NumCPU().
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	p := &Pool{
		tasks: make(chan func(), numWorkers),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for task := range p.tasks {
		task()
	}
}

// Schedule enqueues a unit of work. It blocks if all workers are busy and
// the queue is full. Scheduling on a closed pool panics.
func (p *Pool) Schedule(task func()) {
	p.tasks <- task
}

// Close shuts the pool down. Workers finish the tasks already scheduled and
// exit. Close is idempotent.
func (p *Pool) Close() {
	p.muClosed.Lock()
	defer p.muClosed.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.tasks)
}

// Fanout runs fn(index) on the pool for index = 0, step, 2*step, ... < max,
// and blocks until every scheduled unit has completed.
//
// Units keep running even after a sibling fails: aborting early could leave
// workers touching memory the caller is about to reclaim. After the full
// drain, the failure of the lowest-indexed failed unit is returned; later
// failures are discarded. A panic inside a unit is captured and reported as
// that unit's failure rather than propagated.
//
// Fanout returns no results: side effects happen through shared output
// buffers owned by the caller, who must guarantee the units' write regions
// don't overlap -- Fanout performs no locking.
func Fanout(pool *Pool, max, step int, fn func(index int) error) error {
	if step <= 0 {
		return errors.Errorf("xsync.Fanout: step must be positive, got %d", step)
	}
	numUnits := max / step
	if max%step > 0 {
		numUnits++
	}
	if numUnits <= 0 {
		return nil
	}

	// One settled outcome per unit, written only by that unit.
	outcomes := make([]error, numUnits)
	var wg sync.WaitGroup
	wg.Add(numUnits)
	for unit := range numUnits {
		index := unit * step
		outcome := &outcomes[unit]
		pool.Schedule(func() {
			defer wg.Done()
			defer func() {
				if exception := recover(); exception != nil {
					*outcome = errors.Errorf("unit at index %d panicked: %v", index, exception)
				}
			}()
			*outcome = fn(index)
		})
	}
	wg.Wait()

	// Lowest-index failure wins.
	for unit, err := range outcomes {
		if err != nil {
			return errors.WithMessagef(err, "unit at index %d (of %d units) failed", unit*step, numUnits)
		}
	}
	return nil
}
