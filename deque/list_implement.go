package deque

type ListDeque[T any] struct {
	head *node[T]
	tail *node[T]

	size int
	// 容量，0 表示不限制
	capacity int
}

type node[T any] struct {
	val  T
	pre  *node[T]
	next *node[T]
}

// 工厂方法
func NewListDeque[T any](capacity int) *ListDeque[T] {
	head := &node[T]{}
	tail := &node[T]{}
	head.next = tail
	tail.pre = head

	return &ListDeque[T]{
		head:     head,
		tail:     tail,
		size:     0,
		capacity: capacity,
	}
}

func (ld *ListDeque[T]) Size() int {
	return ld.size
}

func (ld *ListDeque[T]) at(i int) *node[T] {
	if i < 0 || i >= ld.size {
		panic("index out of length")
	}
	// 从较近的一端开始查找
	if i < ld.size/2 {
		iter := ld.head.next
		for k := 0; k < i; k++ {
			iter = iter.next
		}
		return iter
	}
	iter := ld.tail.pre
	for k := ld.size - 1; k > i; k-- {
		iter = iter.pre
	}
	return iter
}

func (ld *ListDeque[T]) Get(i int) T {
	return ld.at(i).val
}

func (ld *ListDeque[T]) Set(i int, v T) {
	ld.at(i).val = v
}

func (ld *ListDeque[T]) Traverse(f func(i int, v T) bool) {
	i := 0
	for iter := ld.head.next; iter != ld.tail; iter = iter.next {
		if !f(i, iter.val) {
			return
		}
		i++
	}
}

func (ld *ListDeque[T]) AddLast(v T) bool {
	if ld.IsFull() {
		return false
	}
	newNode := &node[T]{
		val: v,
	}
	tmp := ld.tail.pre
	ld.tail.pre = newNode
	newNode.next = ld.tail
	newNode.pre = tmp
	tmp.next = newNode
	ld.size++
	return true
}

func (ld *ListDeque[T]) RemoveLast() (T, bool) {
	var zero T
	if ld.size == 0 {
		return zero, false
	}
	n := ld.tail.pre
	ld.tail.pre = n.pre
	ld.tail.pre.next = ld.tail
	ld.size--
	return n.val, true
}

func (ld *ListDeque[T]) AddFirst(v T) bool {
	if ld.IsFull() {
		return false
	}
	newNode := &node[T]{
		val: v,
	}
	tmp := ld.head.next
	ld.head.next = newNode
	newNode.pre = ld.head
	newNode.next = tmp
	tmp.pre = newNode
	ld.size++
	return true
}

func (ld *ListDeque[T]) RemoveFirst() (T, bool) {
	var zero T
	if ld.size == 0 {
		return zero, false
	}
	n := ld.head.next
	ld.head.next = n.next
	ld.head.next.pre = ld.head
	ld.size--
	return n.val, true
}

func (ld *ListDeque[T]) Clear() {
	ld.head.next = ld.tail
	ld.tail.pre = ld.head
	ld.size = 0
}

func (ld *ListDeque[T]) IsFull() bool {
	return ld.capacity > 0 && ld.size == ld.capacity
}

func (ld *ListDeque[T]) IsEmpty() bool {
	return ld.size == 0
}
