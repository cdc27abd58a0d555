package proc

import "container/heap"

// l1Queue orders by ascending RemainBurst (shortest-remaining-time-first).
// Priority only breaks a tie between two threads both at RemainBurst == 0;
// any other equal-burst tie falls through to insertion order.
type l1Queue struct{ items []*Thread }

func (q *l1Queue) Len() int { return len(q.items) }

func (q *l1Queue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.RemainBurst != b.RemainBurst {
		return a.RemainBurst < b.RemainBurst
	}
	if a.RemainBurst == 0 && b.RemainBurst == 0 && a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (q *l1Queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].queueIndex = i
	q.items[j].queueIndex = j
}

func (q *l1Queue) Push(x any) {
	t := x.(*Thread)
	t.queueIndex = len(q.items)
	q.items = append(q.items, t)
}

func (q *l1Queue) Pop() any {
	old := q.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	t.queueIndex = -1
	return t
}

func (q *l1Queue) peek() *Thread {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// l2Queue orders by descending Priority; ties broken by insertion order.
type l2Queue struct{ items []*Thread }

func (q *l2Queue) Len() int { return len(q.items) }

func (q *l2Queue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.seq < b.seq
}

func (q *l2Queue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].queueIndex = i
	q.items[j].queueIndex = j
}

func (q *l2Queue) Push(x any) {
	t := x.(*Thread)
	t.queueIndex = len(q.items)
	q.items = append(q.items, t)
}

func (q *l2Queue) Pop() any {
	old := q.items
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	t.queueIndex = -1
	return t
}

func (q *l2Queue) peek() *Thread {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

var (
	_ heap.Interface = (*l1Queue)(nil)
	_ heap.Interface = (*l2Queue)(nil)
)
