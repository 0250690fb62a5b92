package utils

import "sync"

// WorkerPool bounds how many submitted tasks execute at once.
type WorkerPool interface {
	Execute(task func())
	Wait()
}

type defaultWorkerPool struct {
	limit        chan struct{}
	wg           sync.WaitGroup
	panicHandler func(any)
}

type Option func(*defaultWorkerPool)

// WithPanicHandler installs a handler invoked with the recovered value when a
// task panics; without one the panic propagates.
func WithPanicHandler(handler func(any)) Option {
	return func(wp *defaultWorkerPool) {
		wp.panicHandler = handler
	}
}

func NewWorkerPool(maxConcurrent uint, options ...Option) WorkerPool {
	if maxConcurrent == 0 {
		maxConcurrent = 1
	}
	wp := &defaultWorkerPool{
		limit: make(chan struct{}, maxConcurrent),
	}
	for _, option := range options {
		option(wp)
	}
	return wp
}

// Execute submits a task; it runs once a slot is free.
func (wp *defaultWorkerPool) Execute(task func()) {
	wp.wg.Go(func() {
		wp.limit <- struct{}{}
		defer func() { <-wp.limit }()
		if wp.panicHandler != nil {
			defer func() {
				if r := recover(); r != nil {
					wp.panicHandler(r)
				}
			}()
		}
		task()
	})
}

func (wp *defaultWorkerPool) Wait() {
	wp.wg.Wait()
}
