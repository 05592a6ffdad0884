package lru

// entry is a cache node. The prev/next links are only ever touched by list.
type entry[V any] struct {
	key   string
	value V

	prev *entry[V]
	next *entry[V]
}

// list is a doubly-linked recency list bounded by two sentinels.
// The node after head is the most recently used, the node before tail the least.
type list[V any] struct {
	head *entry[V]
	tail *entry[V]
}

func newList[V any]() list[V] {
	head := &entry[V]{}
	tail := &entry[V]{}
	head.next = tail
	tail.prev = head
	return list[V]{head: head, tail: tail}
}

// pushFront inserts a detached node right after the head sentinel.
func (l *list[V]) pushFront(node *entry[V]) {
	node.prev = l.head
	node.next = l.head.next
	l.head.next.prev = node
	l.head.next = node
}

// remove unlinks a node and clears its pointers.
func (l *list[V]) remove(node *entry[V]) {
	node.prev.next = node.next
	node.next.prev = node.prev
	node.prev = nil
	node.next = nil
}

func (l *list[V]) moveToFront(node *entry[V]) {
	if l.head.next == node {
		return
	}
	l.remove(node)
	l.pushFront(node)
}

// back returns the least recently used node, or nil when empty.
func (l *list[V]) back() *entry[V] {
	if l.tail.prev == l.head {
		return nil
	}
	return l.tail.prev
}
