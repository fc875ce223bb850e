package service

import (
	"sync"
	"sync/atomic"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

// messageQueue is an unbounded FIFO. wake receives a token on every push so
// an idle loop does not have to wait out its poll delay.
type messageQueue struct {
	mu    sync.Mutex
	items []model.QueuedMessage
	depth atomic.Int64
	wake  chan struct{}
}

func newMessageQueue() *messageQueue {
	return &messageQueue{wake: make(chan struct{}, 1)}
}

func (q *messageQueue) push(m model.QueuedMessage) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.depth.Store(int64(len(q.items)))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *messageQueue) pop() (model.QueuedMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return model.QueuedMessage{}, false
	}
	m := q.items[0]
	q.items[0] = model.QueuedMessage{}
	q.items = q.items[1:]
	q.depth.Store(int64(len(q.items)))
	return m, true
}

func (q *messageQueue) len() int {
	return int(q.depth.Load())
}

// clear empties the queue and returns what was dropped.
func (q *messageQueue) clear() []model.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.items
	q.items = nil
	q.depth.Store(0)
	return dropped
}
