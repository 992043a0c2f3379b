package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// 基于切片任务分配
type Executor struct {
	workers int
}

type task struct {
	start int
	end   int
}

func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Executor{workers: workers}
}

func (e *Executor) Workers() int {
	return e.workers
}

// Range 将 [0, n) 切分后分发给各 worker，f 对每个区间调用一次，全部完成后返回耗时
// 各区间互不相交，f 只应写入属于自己区间的数据
func Range(workers, n int, f func(start, end int)) time.Duration {
	return NewExecutor(workers).Dispatch(0, n, f)
}

func (e *Executor) Dispatch(first, last int, f func(start, end int)) time.Duration {
	start := time.Now()
	tasks := split(first, last, e.workers)
	if len(tasks) == 0 {
		return time.Since(start)
	}
	if len(tasks) == 1 {
		f(tasks[0].start, tasks[0].end)
		return time.Since(start)
	}

	dispatchChan := make(chan task, len(tasks))
	for _, t := range tasks {
		dispatchChan <- t
	}
	close(dispatchChan)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		panicked interface{}
	)
	workers := e.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicked == nil {
						panicked = r
					}
					mu.Unlock()
				}
			}()
			for t := range dispatchChan {
				f(t.start, t.end)
			}
		}()
	}
	wg.Wait()
	if panicked != nil {
		panic(fmt.Sprintf("parallel: worker panic: %v", panicked))
	}
	return time.Since(start)
}

// split 每个 worker 分到 taskLen 个元素，再对半拆成两个任务，余数逐个分发
func split(first, last, workers int) []task {
	total := last - first
	if total <= 0 {
		return nil
	}
	taskLen, remainder := total/workers, total%workers
	tasks := make([]task, 0, workers*2+remainder)

	start := first
	if taskLen > 0 {
		if taskLen == 1 {
			for start < last-remainder {
				tasks = append(tasks, task{start: start, end: start + 1})
				start++
			}
		} else {
			half1, half2 := taskLen/2, taskLen/2
			if taskLen%2 == 1 {
				half2++
			}
			for start < last-remainder {
				if half1 != 0 {
					tasks = append(tasks, task{start: start, end: start + half1})
					start += half1
				}
				if half2 != 0 {
					tasks = append(tasks, task{start: start, end: start + half2})
					start += half2
				}
			}
		}
	}

	for i := 0; i < remainder; i++ {
		tasks = append(tasks, task{start: start, end: start + 1})
		start++
	}
	return tasks
}
