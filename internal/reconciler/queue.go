package reconciler

import (
	"context"
	"sync"
	"time"
)

// workQueue implements Queue with deduplication.
type workQueue struct {
	mu sync.Mutex

	// queue holds requests in FIFO order
	queue []Request

	// processing tracks keys currently being processed
	processing map[string]bool

	// dirty holds the latest request added for a key while it was processing
	dirty map[string]Request

	// cond is used for blocking Get operations
	cond *sync.Cond

	// shuttingDown indicates the queue is stopping
	shuttingDown bool
}

// NewQueue creates a new request queue.
func NewQueue() Queue {
	q := &workQueue{
		queue:      make([]Request, 0),
		processing: make(map[string]bool),
		dirty:      make(map[string]Request),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add adds or updates a request in the queue.
func (q *workQueue) Add(req Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := req.Key()

	// If already being processed, mark as dirty for reprocessing
	if q.processing[key] {
		q.dirty[key] = req
		return
	}

	// Latest wins, position is kept
	for i, existing := range q.queue {
		if existing.Key() == key {
			q.queue[i] = req
			return
		}
	}

	q.queue = append(q.queue, req)
	q.cond.Signal()
}

// Get retrieves the next request, blocking if necessary.
func (q *workQueue) Get(ctx context.Context) (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return Request{}, false
		default:
		}

		// Wake the cond on cancellation. Closing done releases the goroutine
		// after a normal wakeup.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return Request{}, false
		default:
		}
	}

	if len(q.queue) == 0 {
		return Request{}, false
	}

	req := q.queue[0]
	q.queue = q.queue[1:]
	q.processing[req.Key()] = true

	return req, true
}

// Done marks a request as completed.
func (q *workQueue) Done(req Request) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := req.Key()
	delete(q.processing, key)

	if dirtyReq, ok := q.dirty[key]; ok {
		delete(q.dirty, key)
		q.queue = append(q.queue, dirtyReq)
		q.cond.Signal()
	}
}

// Len returns the queue length.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops the queue. Requests already queued are still returned by
// Get, which reports false once the queue is empty.
func (q *workQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedQueue wraps a queue with delayed requeue support. The renew and
// sweep requests reschedule themselves through it.
type delayedQueue struct {
	queue      Queue
	mu         sync.Mutex
	delayedMap map[string]*time.Timer
	stopped    bool
}

// NewDelayedQueue creates a queue that supports delayed requeuing.
func NewDelayedQueue() *delayedQueue {
	return &delayedQueue{
		queue:      NewQueue(),
		delayedMap: make(map[string]*time.Timer),
	}
}

// Add adds a request immediately.
func (d *delayedQueue) Add(req Request) {
	d.queue.Add(req)
}

// AddAfter adds a request after a delay, replacing a pending timer for the
// same key.
func (d *delayedQueue) AddAfter(req Request, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	key := req.Key()

	if timer, ok := d.delayedMap[key]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.stopped || d.delayedMap[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.delayedMap, key)
		d.mu.Unlock()

		req.Enqueued = time.Now()
		d.queue.Add(req)
	})
	d.delayedMap[key] = timer
}

// Pending returns the number of delayed requests not yet queued.
func (d *delayedQueue) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delayedMap)
}

// StopTimers cancels every delayed request. Later AddAfter calls are ignored.
func (d *delayedQueue) StopTimers() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, timer := range d.delayedMap {
		timer.Stop()
	}
	d.delayedMap = make(map[string]*time.Timer)
}

// Get retrieves the next request.
func (d *delayedQueue) Get(ctx context.Context) (Request, bool) {
	return d.queue.Get(ctx)
}

// Done marks a request as completed.
func (d *delayedQueue) Done(req Request) {
	d.queue.Done(req)
}

// Len returns the queue length.
func (d *delayedQueue) Len() int {
	return d.queue.Len()
}

// Shutdown cancels pending timers and stops the queue.
func (d *delayedQueue) Shutdown() {
	d.StopTimers()
	d.queue.Shutdown()
}
