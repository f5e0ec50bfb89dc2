package worker

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

type Worker struct {
	id         int
	pool       *jobChannelPool
	dispatcher *Dispatcher
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, dispatcher *Dispatcher) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		dispatcher: dispatcher,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.process(job)
			w.dispatcher.complete(job.chatID())
			if !w.pool.Release(w.jobChannel) {
				return
			}
		}
	}()
}

// process runs the handler; a panic is logged and the chat keeps going.
func (w *Worker) process(job Job) {
	fields := logrus.Fields{
		"worker":  w.id,
		"chat_id": job.chatID(),
		"event":   job.Event.Kind.String(),
	}
	defer func() {
		if r := recover(); r != nil {
			w.dispatcher.logger.WithFields(fields).Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	if err := w.dispatcher.handler.Handle(w.dispatcher.ctx, job.Event); err != nil {
		w.dispatcher.logger.WithFields(fields).WithError(err).Warn("event handling failed")
	}
}
