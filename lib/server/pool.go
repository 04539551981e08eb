package server

import (
	"sync"

	"github.com/Lorinet/Hypefuse/lib/util/logger"
)

// Job is one unit of work, typically an accepted connection.
type Job func()

// WorkerPool runs jobs on a fixed set of goroutines in FIFO order.
//
// With depth 0 the queue is unbounded and Submit never blocks. With depth > 0
// Submit blocks while depth jobs are already waiting; jobs are never dropped.
type WorkerPool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    []Job
	depth    int
	closed   bool
	wg       sync.WaitGroup
}

// NewWorkerPool starts size workers.
func NewWorkerPool(size, depth int) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if depth < 0 {
		depth = 0
	}
	p := &WorkerPool{depth: depth}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Submit enqueues job. It reports false when the pool is closed.
func (p *WorkerPool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.depth > 0 && len(p.queue) >= p.depth && !p.closed {
		p.notFull.Wait()
	}
	if p.closed {
		return false
	}
	p.queue = append(p.queue, job)
	p.notEmpty.Signal()
	return true
}

// Pending returns the number of queued jobs not yet picked up.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting jobs, lets the workers drain the queue and waits for
// them to exit.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *WorkerPool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.notEmpty.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.notFull.Signal()
	return job, true
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		job, ok := p.next()
		if !ok {
			return
		}
		p.run(id, job)
	}
}

func (p *WorkerPool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{
				"at":     "(WorkerPool).run",
				"worker": id,
				"panic":  r,
			}).Error("panic_in_job")
		}
	}()
	job()
}
