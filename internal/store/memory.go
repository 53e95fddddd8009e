package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryRepository хранит записи в памяти процесса. Семантика операций
// совпадает с PostgresRepository: значения проходят через ту же сериализацию,
// доступ безопасен из нескольких горутин. Используется в тестах и при запуске
// без БД.
type MemoryRepository[M any] struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryRepository создаёт пустой репозиторий в памяти.
func NewMemoryRepository[M any]() *MemoryRepository[M] {
	return &MemoryRepository[M]{
		data: make(map[string][]byte),
	}
}

// Create создаёт запись. Возвращает ErrAlreadyExists, если ключ занят.
func (r *MemoryRepository[M]) Create(ctx context.Context, key string, value M) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}

	r.data[key] = data
	return nil
}

// Read возвращает запись по ключу или nil, если её нет.
func (r *MemoryRepository[M]) Read(ctx context.Context, key string) (*M, error) {
	r.mu.RLock()
	data, ok := r.data[key]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	var value M
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}

	return &value, nil
}

// Update обновляет существующую запись. Если записи нет, возвращает ErrNotFound.
func (r *MemoryRepository[M]) Update(ctx context.Context, key string, value M) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	r.data[key] = data
	return nil
}

// Delete удаляет запись и возвращает её прежнее значение.
func (r *MemoryRepository[M]) Delete(ctx context.Context, key string) (*M, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ok := r.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	var value M
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}

	delete(r.data, key)
	return &value, nil
}
