// Package store содержит обобщённый репозиторий записей «ключ — значение».
// Записи сериализуются в байты и хранятся в PostgreSQL либо в памяти.
package store

import (
	"context"
	"errors"
)

// ErrAlreadyExists возвращается при попытке создать запись с уже занятым ключом.
var (
	ErrAlreadyExists = errors.New("record already exists")
	// ErrNotFound возвращается при обновлении или удалении отсутствующей записи.
	ErrNotFound = errors.New("record not found")
)

// Repository описывает контракт хранилища записей типа M.
// Create и Update атомарны: Create завершается ErrAlreadyExists, если ключ
// занят, Update — ErrNotFound, если записи ещё нет. Отдельная проверка
// существования перед записью не нужна.
type Repository[M any] interface {
	// Create создаёт запись. Возвращает ErrAlreadyExists, если ключ занят.
	Create(ctx context.Context, key string, value M) error
	// Read возвращает запись или nil, если её нет. Ошибка чтения или
	// десериализации не считается отсутствием записи.
	Read(ctx context.Context, key string) (*M, error)
	// Update обновляет существующую запись. Возвращает ErrNotFound,
	// если записи нет.
	Update(ctx context.Context, key string, value M) error
	// Delete удаляет запись и возвращает её прежнее значение.
	// Возвращает ErrNotFound, если записи нет.
	Delete(ctx context.Context, key string) (*M, error)
}
