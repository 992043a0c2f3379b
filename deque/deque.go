/**
 *
 * 双端队列
 * 链表实现用于数量不定的场景（任务回收列表），数组实现用于固定容量的场景（消息历史）
 *
 */

package deque

type Deque[T any] interface {
	// 队列的长度
	Size() int

	// 获取队列中对应下标的元素
	Get(i int) T

	// 设定队列中对应下标的元素
	Set(i int, v T)

	// 正向遍历，f 返回 false 时停止
	Traverse(f func(i int, v T) bool)

	// 在队列结尾增加一个元素，队列满时返回 false
	AddLast(v T) bool

	// 在队列结尾删除一个元素
	RemoveLast() (T, bool)

	// 在队列头部增加一个元素，队列满时返回 false
	AddFirst(v T) bool

	// 在队列头部删除一个元素
	RemoveFirst() (T, bool)

	// 清空
	Clear()

	IsFull() bool

	IsEmpty() bool
}

// Drain removes every element from d and returns them front to back.
func Drain[T any](d Deque[T]) []T {
	out := make([]T, 0, d.Size())
	for !d.IsEmpty() {
		v, _ := d.RemoveFirst()
		out = append(out, v)
	}
	return out
}

// Slice copies the elements of d front to back without removing them.
func Slice[T any](d Deque[T]) []T {
	out := make([]T, 0, d.Size())
	d.Traverse(func(_ int, v T) bool {
		out = append(out, v)
		return true
	})
	return out
}
