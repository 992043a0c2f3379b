package deque

// 数组大小基数
const base = 8

// ArrDeque 基于环形数组的定长双端队列
type ArrDeque[T any] struct {
	arr []T
	// 头部元素下标
	start int

	// 元素个数
	size int
	// 容量
	capacity int
}

// 工厂方法，容量向上取整到 base 的倍数
func NewArrDeque[T any](capacity int) *ArrDeque[T] {
	if capacity <= 0 {
		capacity = base
	}
	remainder := capacity % base
	if remainder != 0 {
		capacity = capacity - remainder + base
	}
	return &ArrDeque[T]{
		arr:      make([]T, capacity),
		capacity: capacity,
	}
}

func (ad *ArrDeque[T]) Size() int {
	return ad.size
}

func (ad *ArrDeque[T]) Cap() int {
	return ad.capacity
}

func (ad *ArrDeque[T]) index(i int) int {
	if i < 0 || i >= ad.size {
		panic("index out of length")
	}
	return (ad.start + i) % ad.capacity
}

func (ad *ArrDeque[T]) Get(i int) T {
	return ad.arr[ad.index(i)]
}

func (ad *ArrDeque[T]) Set(i int, v T) {
	ad.arr[ad.index(i)] = v
}

func (ad *ArrDeque[T]) Traverse(f func(i int, v T) bool) {
	for i := 0; i < ad.size; i++ {
		if !f(i, ad.arr[(ad.start+i)%ad.capacity]) {
			return
		}
	}
}

func (ad *ArrDeque[T]) AddLast(v T) bool {
	if ad.IsFull() {
		return false
	}
	ad.arr[(ad.start+ad.size)%ad.capacity] = v
	ad.size++
	return true
}

func (ad *ArrDeque[T]) RemoveLast() (T, bool) {
	var zero T
	if ad.size == 0 {
		return zero, false
	}
	k := (ad.start + ad.size - 1) % ad.capacity
	v := ad.arr[k]
	ad.arr[k] = zero
	ad.size--
	return v, true
}

func (ad *ArrDeque[T]) AddFirst(v T) bool {
	if ad.IsFull() {
		return false
	}
	ad.start = (ad.start - 1 + ad.capacity) % ad.capacity
	ad.arr[ad.start] = v
	ad.size++
	return true
}

func (ad *ArrDeque[T]) RemoveFirst() (T, bool) {
	var zero T
	if ad.size == 0 {
		return zero, false
	}
	v := ad.arr[ad.start]
	ad.arr[ad.start] = zero
	ad.start = (ad.start + 1) % ad.capacity
	ad.size--
	return v, true
}

// Push 在结尾增加一个元素，队列满时先丢弃头部元素
func (ad *ArrDeque[T]) Push(v T) {
	if ad.IsFull() {
		ad.RemoveFirst()
	}
	ad.AddLast(v)
}

func (ad *ArrDeque[T]) Clear() {
	var zero T
	for i := range ad.arr {
		ad.arr[i] = zero
	}
	ad.start, ad.size = 0, 0
}

func (ad *ArrDeque[T]) IsFull() bool {
	return ad.size == ad.capacity
}

func (ad *ArrDeque[T]) IsEmpty() bool {
	return ad.size == 0
}
