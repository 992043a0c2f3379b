package source

import (
	"fmt"
	"sync"

	"github.com/ctessum/sparse"

	"gapview/model"
)

// Memory serves arrays registered under a name.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*sparse.DenseArray
}

func NewMemory() *Memory {
	return &Memory{data: map[string]*sparse.DenseArray{}}
}

func (m *Memory) Put(name string, arr *sparse.DenseArray) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = arr
}

func (m *Memory) Read(name string) (*sparse.DenseArray, error) {
	m.mu.RLock()
	arr, ok := m.data[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrNotFound, name)
	}
	if err := Check(arr); err != nil {
		return nil, err
	}
	return arr, nil
}
