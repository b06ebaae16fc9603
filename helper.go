package main

// Helper provides a simple encapsulation of a goroutine that repeatedly applies
// work to a work queue until the queue closes. Once fn fails, the remaining
// work is drained without being applied, so Queue never blocks forever on a
// dead helper.
type Helper[Work any] struct {
	work chan<- Work
	done <-chan struct{}
	err  error
}

// NewHelper creates a worker consuming work items from a channel and applying
// the given function to each item, until the work channel is closed. The
// size of the work channel is specified via 'workCap'; a full queue blocks
// the producer.
func NewHelper[Work any](workCap int, fn func(Work) error) *Helper[Work] {
	work := make(chan Work, workCap)
	done := make(chan struct{})
	h := &Helper[Work]{work: work, done: done}

	go func() {
		defer close(done)
		for item := range work {
			if h.err != nil {
				continue
			}
			h.err = fn(item)
		}
	}()

	return h
}

// Close signals the helper that the last work has been dispatched, and it should
// exit once the queue is drained.
func (h *Helper[Work]) Close() {
	close(h.work)
}

// Wait blocks until the helper has finished processing all work and returns
// the first error of fn, if any.
func (h *Helper[Work]) Wait() error {
	<-h.done
	return h.err
}

// Queue sends an item of work to the helper.
func (h *Helper[Work]) Queue(item Work) {
	h.work <- item
}

// CloseWait is a convenience function that calls Close and then Wait.
func (h *Helper[Work]) CloseWait() error {
	h.Close()
	return h.Wait()
}
