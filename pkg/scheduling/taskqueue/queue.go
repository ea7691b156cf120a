package taskqueue

import (
	"context"
	"sync"
	"sync/atomic"
)

// node is one link of the queue. The node at tail is always an empty dummy;
// Push fills it and appends a fresh dummy behind it.
type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is an unbounded FIFO safe for concurrent use by any number of
// producers and consumers.
//
// The head and the tail are guarded by separate mutexes so a consumer popping
// from the front and a producer pushing to the back do not contend. The only
// path that holds both is a pop, which takes headMu and then briefly tailMu to
// read the live tail; no path takes them in the opposite order.
type Queue[T any] struct {
	headMu   sync.Mutex
	head     *node[T]
	nonEmpty *sync.Cond // tied to headMu
	waiters  atomic.Int64

	tailMu sync.Mutex
	tail   *node[T]

	size atomic.Int64
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	dummy := &node[T]{}
	q := &Queue[T]{
		head: dummy,
		tail: dummy,
	}
	q.nonEmpty = sync.NewCond(&q.headMu)
	return q
}

// Push appends v to the back of the queue. It never blocks on consumers and
// only takes the tail lock, except when a consumer is parked in WaitAndPop,
// in which case it takes the head lock to hand over the wakeup.
func (q *Queue[T]) Push(v T) {
	next := &node[T]{}

	q.tailMu.Lock()
	q.tail.value = v
	q.tail.next = next
	q.tail = next
	q.tailMu.Unlock()

	q.size.Add(1)

	// A waiter registers itself before it inspects the tail, so a zero here
	// means any future waiter will observe the node appended above.
	if q.waiters.Load() > 0 {
		q.headMu.Lock()
		q.nonEmpty.Signal()
		q.headMu.Unlock()
	}
}

// TryPop removes and returns the front element without blocking. The boolean
// is false when the queue was empty.
func (q *Queue[T]) TryPop() (T, bool) {
	q.headMu.Lock()
	defer q.headMu.Unlock()

	if q.head == q.loadTail() {
		var zero T
		return zero, false
	}
	return q.popHead(), true
}

// WaitAndPop removes and returns the front element, parking the caller until
// one is available.
func (q *Queue[T]) WaitAndPop() T {
	q.headMu.Lock()
	defer q.headMu.Unlock()

	q.waiters.Add(1)
	for q.head == q.loadTail() {
		q.nonEmpty.Wait()
	}
	q.waiters.Add(-1)

	return q.popHead()
}

// WaitAndPopContext is WaitAndPop bounded by ctx. It returns ctx.Err() if the
// context ends before an element arrives; nothing is removed in that case.
func (q *Queue[T]) WaitAndPopContext(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		q.headMu.Lock()
		q.nonEmpty.Broadcast()
		q.headMu.Unlock()
	})
	defer stop()

	q.headMu.Lock()
	defer q.headMu.Unlock()

	q.waiters.Add(1)
	defer q.waiters.Add(-1)

	for q.head == q.loadTail() {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.nonEmpty.Wait()
	}
	return q.popHead(), nil
}

// Empty reports whether the queue held no elements at the moment of the
// call. Under concurrent use the answer is advisory only.
func (q *Queue[T]) Empty() bool {
	q.headMu.Lock()
	defer q.headMu.Unlock()
	return q.head == q.loadTail()
}

// Len returns an approximate element count, suitable for metrics.
func (q *Queue[T]) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (q *Queue[T]) loadTail() *node[T] {
	q.tailMu.Lock()
	defer q.tailMu.Unlock()
	return q.tail
}

// popHead detaches the front node. Caller holds headMu and has checked that
// head != tail.
func (q *Queue[T]) popHead() T {
	old := q.head
	q.head = old.next
	v := old.value

	var zero T
	old.value = zero
	old.next = nil

	q.size.Add(-1)
	return v
}
