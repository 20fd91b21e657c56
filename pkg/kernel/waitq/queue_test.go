package waitq

import (
	"cmp"
	"slices"
	"testing"
)

type entry struct {
	name string
	key  int
}

func descending(a, b *entry) int { return cmp.Compare(b.key, a.key) }

func names(items []*entry) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, e.name)
	}
	return out
}

func TestNewQueue(t *testing.T) {
	q := New(descending)
	if q == nil {
		t.Fatal("New() returned nil")
	}
	if !q.Empty() || q.Len() != 0 {
		t.Error("new queue should be empty")
	}
	if _, ok := q.Front(); ok {
		t.Error("Front() on empty queue should report false")
	}
	if _, ok := q.PopFront(); ok {
		t.Error("PopFront() on empty queue should report false")
	}
}

func TestInsertKeepsOrderAndFIFOAmongEquals(t *testing.T) {
	q := New(descending)
	q.Insert(&entry{"a", 31})
	q.Insert(&entry{"b", 40})
	q.Insert(&entry{"c", 31})
	q.Insert(&entry{"d", 10})
	q.Insert(&entry{"e", 40})

	got := names(q.Items())
	want := []string{"b", "e", "a", "c", "d"}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRevalidatingQueueSeesKeyChanges(t *testing.T) {
	q := NewRevalidating(descending)
	a := &entry{"a", 5}
	b := &entry{"b", 5}
	c := &entry{"c", 3}
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	c.key = 6 // raised while queued
	front, _ := q.Front()
	if front != c {
		t.Fatalf("Front() = %s, want c", front.name)
	}

	got := names(q.Items())
	want := []string{"c", "a", "b"}
	if !slices.Equal(got, want) {
		t.Errorf("order after revalidation = %v, want %v", got, want)
	}
}

func TestRevalidationMatchesResortThenTakeHead(t *testing.T) {
	q := NewRevalidating(descending)
	a := &entry{"a", 5}
	b := &entry{"b", 5}
	c := &entry{"c", 5}
	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	b.key, c.key = 6, 6
	first, _ := q.PopFront()
	if first != b {
		t.Fatalf("first = %s, want b", first.name)
	}

	// The surviving order is the stable re-sort: c (6) ahead of a (5), so a
	// new 6 queues behind c and ahead of a.
	q.Insert(&entry{"d", 6})
	got := names(q.Items())
	want := []string{"c", "d", "a"}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestFixedQueueDoesNotResort(t *testing.T) {
	q := New(descending)
	a := &entry{"a", 5}
	b := &entry{"b", 3}
	q.Insert(a)
	q.Insert(b)

	b.key = 9
	front, _ := q.Front()
	if front != a {
		t.Errorf("fixed queue reordered: front = %s", front.name)
	}
}

func TestPopFrontDrainsInOrder(t *testing.T) {
	q := New(func(a, b int) int { return cmp.Compare(a, b) })
	for _, v := range []int{110, 105, 120, 105, 100} {
		q.Insert(v)
	}

	var got []int
	for !q.Empty() {
		v, _ := q.PopFront()
		got = append(got, v)
	}
	want := []int{100, 105, 105, 110, 120}
	if !slices.Equal(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
}
