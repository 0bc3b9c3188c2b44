package software

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

type queueItem struct {
	contexts []*commandContext
	fence    *fence
	value    uint64
	callback func()
}

// queue executes submissions on one goroutine in order. With manual retire every submission
// waits for a permit before it executes.
type queue struct {
	dev *deviceImpl

	mu     sync.Mutex
	closed bool
	work   chan queueItem

	permits chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

var _ gpu.Queue = &queue{}

func newQueue(d *deviceImpl) *queue {
	q := &queue{
		dev:     d,
		work:    make(chan queueItem, 1024),
		permits: make(chan struct{}, 1024),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) Submit(contexts ...gpu.CommandContext) error {
	item := queueItem{contexts: make([]*commandContext, 0, len(contexts))}
	for _, c := range contexts {
		cc, ok := c.(*commandContext)
		if !ok || cc.dev != q.dev {
			return fmt.Errorf("submit: context %q belongs to another device: %w", c.Label(), gpu.ErrInvalidHandle)
		}
		if err := cc.markSubmitted(); err != nil {
			return err
		}
		item.contexts = append(item.contexts, cc)
	}
	return q.push(item)
}

func (q *queue) Signal(f gpu.Fence, value uint64) error {
	sf, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("signal: foreign fence: %w", gpu.ErrInvalidHandle)
	}
	return q.push(queueItem{fence: sf, value: value})
}

// after runs fn on the queue goroutine once all previously queued work has executed.
func (q *queue) after(fn func()) error {
	return q.push(queueItem{callback: fn})
}

func (q *queue) push(item queueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue closed: %w", gpu.ErrDeviceLost)
	}
	q.work <- item
	return nil
}

func (q *queue) retire(n int) {
	for range n {
		select {
		case q.permits <- struct{}{}:
		case <-q.done:
			return
		}
	}
}

func (q *queue) run() {
	defer close(q.stopped)
	for item := range q.work {
		if len(item.contexts) > 0 && q.dev.manualRetire {
			select {
			case <-q.permits:
			case <-q.done:
				q.abandon(item)
				continue
			}
		}
		for _, c := range item.contexts {
			c.execute()
		}
		if item.fence != nil {
			item.fence.signal(item.value)
		}
		if item.callback != nil {
			item.callback()
		}
	}
}

func (q *queue) abandon(item queueItem) {
	for _, c := range item.contexts {
		c.pending.Add(-1)
	}
}

func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	close(q.work)
	q.mu.Unlock()
	<-q.stopped
	common.Logger().Info("software queue stopped", "device", q.dev.label)
}
