package worker

import (
	"context"
	"sync"
)

// Job is one unit of pipeline work, typically a single document's
// extraction call.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job.
type Result interface {
	Err() error
}

// Pool fans a worklist of jobs out to a fixed number of slots. Blocking
// provider I/O is confined to the slots and never stalls the orchestrator's
// bookkeeping. Results accumulate in completion order; callers that need a
// stable order carry an index inside their Result.
type Pool struct {
	slots  int
	queue  chan Job
	ctx    context.Context
	cancel context.CancelFunc
	seal   sync.Once
	wg     sync.WaitGroup

	mu      sync.Mutex
	results []Result
}

// NewPool creates a pool with the given number of slots (minimum one).
func NewPool(slots int) *Pool {
	if slots < 1 {
		slots = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		slots:  slots,
		queue:  make(chan Job, slots*2),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the slot goroutines.
func (p *Pool) Start() {
	p.wg.Add(p.slots)
	for i := 0; i < p.slots; i++ {
		go p.drain()
	}
}

func (p *Pool) drain() {
	defer p.wg.Done()
	for {
		if p.ctx.Err() != nil {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			res := job.Execute(p.ctx)
			p.mu.Lock()
			p.results = append(p.results, res)
			p.mu.Unlock()
		}
	}
}

// Submit queues a job. After Shutdown it returns without queuing.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.queue <- job:
	}
}

// Wait seals the queue, lets the slots finish the remaining work, and
// returns every collected result.
func (p *Pool) Wait() []Result {
	p.seal.Do(func() { close(p.queue) })
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

// Shutdown cancels the pool context and discards queued jobs. Jobs already
// executing finish their current call.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
