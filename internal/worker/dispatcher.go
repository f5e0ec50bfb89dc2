package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pdfbot/internal/conversation"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

type JobType int

const (
	Handle JobType = iota
	Stop
)

type Job struct {
	Type  JobType
	Event conversation.Event
}

func (job Job) chatID() int64 {
	return job.Event.ChatID
}

// Handler consumes one event. Calls for the same chat never overlap.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
}

type chatQueue struct {
	jobs     []Job
	enqueued bool // waiting in the ready list
	running  bool // one of its jobs is on a worker
}

// Dispatcher keeps a FIFO per chat and hands the head of each chat's queue to
// the worker pool, round robin between chats. A chat has at most one job on a
// worker at any time.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher
	handler  Handler
	logger   logrus.FieldLogger

	mu        sync.Mutex
	queues    map[int64]*chatQueue // job queue for each chat
	ready     *list.List           // LRU queue storing chat IDs
	positions map[int64]*list.Element
	stopped   bool

	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, handler Handler, logger logrus.FieldLogger) *Dispatcher {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		JobQueue:  make(chan Job, cfg.QueueSize),
		handler:   handler,
		logger:    logger,
		queues:    make(map[int64]*chatQueue),
		ready:     list.New(),
		positions: make(map[int64]*list.Element),
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	d.pool = newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, d)

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues ev behind every earlier event of the same chat. It blocks while
// the intake queue is full.
func (d *Dispatcher) Submit(ctx context.Context, ev conversation.Event) error {
	select {
	case <-d.quit:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.JobQueue <- Job{Type: Handle, Event: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		return ErrDispatcherStopped
	}
}

// Stop refuses new events and waits for running handlers until ctx expires.
// Queued events that never reached a worker are dropped.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.quit)
		d.pool.shutdown()
	})
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	defer d.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many events are queued but not yet running.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q.jobs)
	}
	return n
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the chat in the front of LRU queue
		if d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // non-congestion
				d.enqueueJob(job)
			case <-d.quit:
				return
			default:
			}
			continue
		}
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.wake:
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	chatID := job.chatID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[chatID]
	if q == nil {
		q = &chatQueue{}
		d.queues[chatID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.running {
		// already waiting, or complete() will requeue it
		return
	}
	q.enqueued = true
	d.positions[chatID] = d.ready.PushBack(chatID)
}

// dispatchOne takes the first chat in the ready list and runs its oldest job.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	chatID := elem.Value.(int64)
	q := d.queues[chatID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.enqueued = false
	q.running = true
	d.ready.Remove(elem)
	delete(d.positions, chatID)
	d.mu.Unlock()

	workerChan, workerID, ok := d.pool.acquire()
	if !ok {
		d.logger.WithField("chat_id", chatID).Warn("dispatcher stopped, event dropped")
		return false
	}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		workerChan <- Job{Type: Stop}
		return false
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	d.debugf("[dispatcher] assign %s event for chat %d to worker-%d", job.Event.Kind, chatID, workerID)
	workerChan <- job
	return true
}

// complete is called by a worker once the chat's job returned.
func (d *Dispatcher) complete(chatID int64) {
	d.mu.Lock()
	if q := d.queues[chatID]; q != nil {
		q.running = false
		switch {
		case len(q.jobs) == 0:
			delete(d.queues, chatID)
		case !q.enqueued:
			q.enqueued = true
			d.positions[chatID] = d.ready.PushBack(chatID)
		}
	}
	d.mu.Unlock()
	d.inflight.Done()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}
