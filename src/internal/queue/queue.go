// FILE: logfan/src/internal/queue/queue.go
package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrClosed is returned by Push after Shutdown.
var ErrClosed = errors.New("queue closed")

// Policy decides what Push does when a bounded queue is full.
type Policy int

const (
	// Block makes the producer wait until a consumer frees a slot.
	Block Policy = iota
	// DropOldest discards the head of the queue to make room.
	DropOldest
)

func (p Policy) String() string {
	switch p {
	case Block:
		return "block"
	case DropOldest:
		return "drop_oldest"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts "block" or "drop_oldest" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return Block, nil
	case "drop_oldest", "drop-oldest", "dropoldest":
		return DropOldest, nil
	}
	return 0, fmt.Errorf("unknown queue policy %q", s)
}

// Queue is a FIFO safe for any number of producers and consumers.
// A capacity of zero means unbounded, in which case the policy is irrelevant.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf      []T
	head     int
	count    int
	capacity int
	policy   Policy
	closed   bool

	pushed  uint64
	dropped uint64
	onDrop  func(T)
}

// New creates a queue. Negative capacity is treated as unbounded.
func New[T any](capacity int, policy Policy) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	initial := capacity
	if initial == 0 || initial > 64 {
		initial = 64
	}
	q := &Queue[T]{
		buf:      make([]T, initial),
		capacity: capacity,
		policy:   policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends item. With the Block policy on a full queue it waits for room;
// with DropOldest it evicts the head and counts the drop.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	for q.capacity > 0 && q.count >= q.capacity {
		if q.policy == DropOldest {
			q.dropHead()
			break
		}
		q.notFull.Wait()
		if q.closed {
			return ErrClosed
		}
	}

	q.append(item)
	q.pushed++
	q.notEmpty.Signal()
	return nil
}

// TryPush appends item only if there is room. It never waits and never drops.
func (q *Queue[T]) TryPush(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || (q.capacity > 0 && q.count >= q.capacity) {
		return false
	}
	q.append(item)
	q.pushed++
	q.notEmpty.Signal()
	return true
}

// SetDropHandler registers fn to observe items evicted by DropOldest.
// fn runs with the queue lock held and must not call back into the queue.
func (q *Queue[T]) SetDropHandler(fn func(T)) {
	q.mu.Lock()
	q.onDrop = fn
	q.mu.Unlock()
}

// Pop blocks until an item is available. After Shutdown it keeps returning
// queued items and reports false once the queue is drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// TryPop returns the head without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// Drain removes and returns every queued item.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.count)
	for q.count > 0 {
		out = append(out, q.take())
	}
	return out
}

// Shutdown closes the queue and wakes every waiter. It is safe to call more than once.
func (q *Queue[T]) Shutdown() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Closed reports whether Shutdown was called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Empty reports whether no items are queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Pushed returns the number of accepted Push calls.
func (q *Queue[T]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}

// Dropped returns the number of items evicted by the DropOldest policy.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Capacity returns the configured bound, zero if unbounded.
func (q *Queue[T]) Capacity() int {
	return q.capacity
}

// Policy returns the full-queue policy.
func (q *Queue[T]) Policy() Policy {
	return q.policy
}

func (q *Queue[T]) append(item T) {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++
}

func (q *Queue[T]) take() T {
	item := q.buf[q.head]
	q.removeHead()
	q.notFull.Signal()
	return item
}

func (q *Queue[T]) dropHead() {
	item := q.buf[q.head]
	q.removeHead()
	q.dropped++
	if q.onDrop != nil {
		q.onDrop(item)
	}
}

func (q *Queue[T]) removeHead() {
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
}

func (q *Queue[T]) grow() {
	size := len(q.buf) * 2
	if q.capacity > 0 && size > q.capacity {
		size = q.capacity
	}
	if size <= len(q.buf) {
		size = len(q.buf) + 1
	}
	buf := make([]T, size)
	for i := 0; i < q.count; i++ {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
