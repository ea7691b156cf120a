/*
Package taskqueue provides an unbounded, thread-safe FIFO queue built as a
linked list of nodes with separate head and tail locks.

A dummy node always sits at the tail, so the queue is empty exactly when head
and tail point at the same node. Producers only touch the tail and consumers
only touch the head, which lets one producer and one consumer make progress at
the same time.

Basic usage:

	q := taskqueue.New[func()]()
	q.Push(func() { fmt.Println("hello") })

	if task, ok := q.TryPop(); ok {
		task()
	}

Blocking consumers:

	task := q.WaitAndPop() // parks until an element is pushed

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, err := q.WaitAndPopContext(ctx)

Ordering:

Elements pushed by a single producer are popped in the order they were pushed.
No ordering is promised between different producers.

Push never blocks and never fails; there is no capacity limit. Empty and Len
are snapshots and may be stale by the time the caller acts on them.
*/
package taskqueue
