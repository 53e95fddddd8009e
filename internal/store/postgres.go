package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store инкапсулирует пул соединений с PostgreSQL, общий для всех репозиториев.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore создаёт пул соединений и инициализирует схему БД через миграции.
func NewStore(dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure или Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// PostgresRepository хранит записи типа M в таблице «ключ — значение».
// Значения кодируются в JSON: кодировка стабильна между перезапусками процесса.
type PostgresRepository[M any] struct {
	store *Store
	table string
}

// NewPostgresRepository создаёт репозиторий поверх общего пула соединений.
// Каждое пространство ключей живёт в собственной таблице.
func NewPostgresRepository[M any](s *Store, table string) *PostgresRepository[M] {
	return &PostgresRepository[M]{
		store: s,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

// Create создаёт запись. Вставка условная: если ключ уже занят, строка не
// перезаписывается и возвращается ErrAlreadyExists.
func (r *PostgresRepository[M]) Create(ctx context.Context, key string, value M) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	var tag pgconn.CommandTag
	err = r.store.withRetry(ctx, func() error {
		var execErr error
		tag, execErr = r.store.pool.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, r.table),
			key, data,
		)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
		}
		return fmt.Errorf("insert record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, key)
	}

	return nil
}

// Read возвращает запись по ключу или nil, если её нет.
func (r *PostgresRepository[M]) Read(ctx context.Context, key string) (*M, error) {
	var data []byte
	err := r.store.withRetry(ctx, func() error {
		return r.store.pool.QueryRow(ctx,
			fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, r.table),
			key,
		).Scan(&data)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var value M
	if err := json.Unmarshal(data, &value); err != nil {
		// Запись есть, но не читается — это повреждение данных, а не отсутствие.
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}

	return &value, nil
}

// Update обновляет существующую запись. Если записи нет, возвращает ErrNotFound.
func (r *PostgresRepository[M]) Update(ctx context.Context, key string, value M) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	var tag pgconn.CommandTag
	err = r.store.withRetry(ctx, func() error {
		var execErr error
		tag, execErr = r.store.pool.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET value = $2 WHERE key = $1`, r.table),
			key, data,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return nil
}

// Delete удаляет запись и возвращает её прежнее значение.
func (r *PostgresRepository[M]) Delete(ctx context.Context, key string) (*M, error) {
	var data []byte
	err := r.store.withRetry(ctx, func() error {
		return r.store.pool.QueryRow(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE key = $1 RETURNING value`, r.table),
			key,
		).Scan(&data)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("delete record: %w", err)
	}

	var value M
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}

	return &value, nil
}
