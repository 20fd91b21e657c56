// Package waitq provides the ordered wait list used by the scheduler's ready
// queue, the semaphore and condition waiter lists, and the timer's sleep set.
package waitq

import "slices"

// Queue keeps elements ordered by cmp, where a negative result means a sorts
// ahead of b. Insertion places an element after every element it does not
// strictly sort ahead of, so equal keys stay first-come first-served.
//
// A revalidating queue tolerates keys that change while an element is queued
// (thread priorities raised by donation): every read of the front first
// restores the order with a stable sort, which is the same as re-sorting the
// list and then taking its head.
type Queue[T any] struct {
	items        []T
	cmp          func(a, b T) int
	revalidating bool
}

// New creates a queue whose element keys never change while queued.
func New[T any](cmp func(a, b T) int) *Queue[T] {
	return &Queue[T]{cmp: cmp}
}

// NewRevalidating creates a queue whose element keys may change while queued.
func NewRevalidating[T any](cmp func(a, b T) int) *Queue[T] {
	return &Queue[T]{cmp: cmp, revalidating: true}
}

// Insert adds v in order.
func (q *Queue[T]) Insert(v T) {
	i := slices.IndexFunc(q.items, func(e T) bool { return q.cmp(v, e) < 0 })
	if i < 0 {
		q.items = append(q.items, v)
		return
	}
	q.items = slices.Insert(q.items, i, v)
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Empty reports whether the queue has no elements.
func (q *Queue[T]) Empty() bool {
	return len(q.items) == 0
}

// Front returns the first element without removing it.
func (q *Queue[T]) Front() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	q.Revalidate()
	return q.items[0], true
}

// PopFront removes and returns the first element.
func (q *Queue[T]) PopFront() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	q.Revalidate()

	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Revalidate restores the queue order after key changes. It is a no-op on
// queues created with New.
func (q *Queue[T]) Revalidate() {
	if !q.revalidating || slices.IsSortedFunc(q.items, q.cmp) {
		return
	}
	slices.SortStableFunc(q.items, q.cmp)
}

// Items returns a copy of the queue contents in their current order.
func (q *Queue[T]) Items() []T {
	return slices.Clone(q.items)
}
