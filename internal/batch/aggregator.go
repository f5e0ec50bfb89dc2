// Package batch reassembles media-group bursts into complete batches.
package batch

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pdfbot/internal/models"
)

// DefaultQuietWindow is how long a batch must stay silent before it is closed.
const DefaultQuietWindow = 1500 * time.Millisecond

// Key identifies an open batch. Media group ids are only unique per chat.
type Key struct {
	ChatID  int64
	BatchID string
}

// CloseFunc receives the members of a closed batch. Ownership of the slice
// passes to the callee.
type CloseFunc func(key Key, members []models.Attachment)

type pending struct {
	members []models.Attachment
	timer   *time.Timer
	gen     uint64
}

// Aggregator collects attachments per batch and closes a batch once no new
// member arrived for the quiet window.
type Aggregator struct {
	mu      sync.Mutex
	open    map[Key]*pending
	window  time.Duration
	onClose CloseFunc
	logger  logrus.FieldLogger
	seq     uint64
}

// NewAggregator builds an aggregator. A non-positive window uses DefaultQuietWindow.
func NewAggregator(window time.Duration, onClose CloseFunc, logger logrus.FieldLogger) *Aggregator {
	if window <= 0 {
		window = DefaultQuietWindow
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{
		open:    make(map[Key]*pending),
		window:  window,
		onClose: onClose,
		logger:  logger,
	}
}

// SetCloseFunc replaces the close callback. Used when the consumer is built
// after the aggregator.
func (a *Aggregator) SetCloseFunc(fn CloseFunc) {
	a.mu.Lock()
	a.onClose = fn
	a.mu.Unlock()
}

// Add appends the attachment to its batch and restarts the batch's quiet timer.
// An id whose previous batch already closed starts a new batch.
func (a *Aggregator) Add(key Key, att models.Attachment) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.open[key]
	if !ok {
		p = &pending{}
		a.open[key] = p
	}
	p.members = append(p.members, att)
	if p.timer != nil {
		p.timer.Stop()
	}
	a.seq++
	gen := a.seq
	p.gen = gen
	p.timer = time.AfterFunc(a.window, func() { a.fire(key, gen) })

	a.logger.WithFields(logrus.Fields{
		"chat_id":  key.ChatID,
		"batch_id": key.BatchID,
		"members":  len(p.members),
	}).Debug("batch member queued")
	return len(p.members)
}

// fire closes the batch unless a newer member superseded this timer.
func (a *Aggregator) fire(key Key, gen uint64) {
	a.mu.Lock()
	p, ok := a.open[key]
	if !ok || p.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.open, key)
	members := p.members
	p.members = nil
	p.timer = nil
	onClose := a.onClose
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"chat_id":  key.ChatID,
		"batch_id": key.BatchID,
		"members":  len(members),
	}).Debug("batch closed")
	if onClose != nil {
		onClose(key, members)
	}
}

// Pending reports how many batches are still open.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// Stop cancels every open timer. Batches still open are discarded.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, p := range a.open {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(a.open, key)
	}
}
