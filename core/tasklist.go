package core

// taskNode owns one submitted task and the link to its sibling. A node belongs
// to exactly one list at a time; every list operation transfers it.
type taskNode struct {
	task Task
	next *taskNode
	// abandon, when set, runs if the node is dropped without being executed.
	abandon func()
}

// taskList is a sentinel head of a singly-linked list of task nodes.
// Following next from the head always reaches nil; the list is empty iff
// head.next is nil.
//
// Pushes go to the front, so directly submitted tasks come out LIFO, which
// keeps recently touched closures hot. Callers must not rely on that order.
type taskList struct {
	next *taskNode
	size int
}

func (l *taskList) empty() bool {
	return l.next == nil
}

func (l *taskList) len() int {
	return l.size
}

// push links node in front of the current first node.
func (l *taskList) push(node *taskNode) {
	node.next = l.next
	l.next = node
	l.size++
}

// splice links the chain [first ... last] in front of the current first node
// in O(1). last.next is expected to be nil.
func (l *taskList) splice(first, last *taskNode, n int) {
	last.next = l.next
	l.next = first
	l.size += n
}

// consumeOne unlinks the first node. The list must not be empty.
func (l *taskList) consumeOne() *taskNode {
	node := l.next
	l.next = node.next
	node.next = nil
	l.size--
	return node
}

// clear drops every node and reports how many were abandoned.
func (l *taskList) clear() int {
	n := l.size
	l.next = nil
	l.size = 0
	return n
}

// privateQueue is a worker's FIFO staging area for continuations. Only the
// owning worker touches it, so it needs no lock; detach requires the pool
// mutex because it writes the shared list.
type privateQueue struct {
	head *taskNode
	tail *taskNode
	size int
}

func (q *privateQueue) empty() bool {
	return q.head == nil
}

// push appends node at the tail.
func (q *privateQueue) push(node *taskNode) {
	node.next = nil
	if q.tail == nil {
		q.head = node
	} else {
		q.tail.next = node
	}
	q.tail = node
	q.size++
}

// detachInto splices the whole queue in front of l, preserving FIFO order,
// and leaves the queue empty. Returns the number of nodes moved.
func (q *privateQueue) detachInto(l *taskList) int {
	if q.empty() {
		return 0
	}
	n := q.size
	l.splice(q.head, q.tail, n)
	q.head, q.tail, q.size = nil, nil, 0
	return n
}
