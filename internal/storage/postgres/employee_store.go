// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/employee-store/internal/employee"
)

// uniqueViolation is the SQLSTATE Postgres reports for duplicate keys.
const uniqueViolation = "23505"

const defaultTable = "employees"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for employee rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store needs; pgxmock implements it
// in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

type queries struct {
	schema     string
	list       string
	insert     string
	update     string
	remove     string
	increment  string
	groupedSum string
}

func buildQueries(table string) queries {
	return queries{
		schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name  TEXT   PRIMARY KEY,
	value BIGINT NOT NULL DEFAULT 0
)`, table),
		list:      fmt.Sprintf(`SELECT name, value FROM %s ORDER BY name COLLATE "C"`, table),
		insert:    fmt.Sprintf(`INSERT INTO %s (name, value) VALUES ($1, $2)`, table),
		update:    fmt.Sprintf(`UPDATE %s SET name = $1, value = $2 WHERE name = $3`, table),
		remove:    fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, table),
		increment: fmt.Sprintf(`UPDATE %s SET value = value + %s`, table, employee.IncrementCaseSQL("name")),
		groupedSum: fmt.Sprintf(`
SELECT substr(name, 1, 1) COLLATE "C" AS initial, SUM(value)::text AS total
FROM %s
WHERE substr(name, 1, 1) = ANY($1)
GROUP BY 1
HAVING SUM(value) >= $2
ORDER BY 1`, table),
	}
}

// EmployeeStore stores employees in a Postgres table.
type EmployeeStore struct {
	pool  pool
	table string
	q     queries
}

var _ employee.Store = (*EmployeeStore)(nil)

// NewEmployeeStore creates a Postgres-backed EmployeeStore using the provided config.
func NewEmployeeStore(ctx context.Context, cfg Config) (*EmployeeStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewEmployeeStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewEmployeeStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewEmployeeStoreWithPool(p pool, table string) (*EmployeeStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &EmployeeStore{pool: p, table: table, q: buildQueries(table)}, nil
}

// EnsureSchema creates the employee table if it does not exist.
func (s *EmployeeStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.q.schema); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *EmployeeStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *EmployeeStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// List returns every employee ordered by name.
func (s *EmployeeStore) List(ctx context.Context) ([]employee.Record, error) {
	rows, err := s.pool.Query(ctx, s.q.list)
	if err != nil {
		return nil, storageErr("list employees", err)
	}
	defer rows.Close()

	records := make([]employee.Record, 0)
	for rows.Next() {
		var rec employee.Record
		if err := rows.Scan(&rec.Name, &rec.Value); err != nil {
			return nil, storageErr("scan employee row", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list employees", err)
	}
	return records, nil
}

// Insert adds rec; the primary key rejects duplicates.
func (s *EmployeeStore) Insert(ctx context.Context, rec employee.Record) error {
	_, err := s.pool.Exec(ctx, s.q.insert, rec.Name, rec.Value)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert %q: %w", rec.Name, employee.ErrConflict)
	}
	if err != nil {
		return storageErr("insert employee", err)
	}
	return nil
}

// Update renames and revalues one employee in a single transaction.
func (s *EmployeeStore) Update(ctx context.Context, originalName, newName string, value int64) error {
	return s.inTx(ctx, "update employee", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, s.q.update, newName, value, originalName)
		if isUniqueViolation(err) {
			return fmt.Errorf("rename %q to %q: %w", originalName, newName, employee.ErrConflict)
		}
		if err != nil {
			return storageErr("update employee", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update %q: %w", originalName, employee.ErrNotFound)
		}
		return nil
	})
}

// Delete removes one employee.
func (s *EmployeeStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, s.q.remove, name)
	if err != nil {
		return storageErr("delete employee", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %q: %w", name, employee.ErrNotFound)
	}
	return nil
}

// ApplyIncrementRule adjusts every row with one UPDATE inside a transaction.
// BIGINT overflow aborts the statement, so no row changes in that case.
func (s *EmployeeStore) ApplyIncrementRule(ctx context.Context) (int64, error) {
	var affected int64
	err := s.inTx(ctx, "apply increment rule", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, s.q.increment)
		if err != nil {
			return storageErr("apply increment rule", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// GroupedSum delegates grouping, filtering and ordering to Postgres. SUM over
// BIGINT yields NUMERIC, which is read back as text into a big.Int.
func (s *EmployeeStore) GroupedSum(ctx context.Context, q employee.GroupQuery) ([]employee.GroupTotal, error) {
	keys := q.Keys()
	if len(keys) == 0 {
		return []employee.GroupTotal{}, nil
	}
	rows, err := s.pool.Query(ctx, s.q.groupedSum, keys, q.Threshold)
	if err != nil {
		return nil, storageErr("grouped sum", err)
	}
	defer rows.Close()

	totals := make([]employee.GroupTotal, 0, len(keys))
	for rows.Next() {
		var initial, total string
		if err := rows.Scan(&initial, &total); err != nil {
			return nil, storageErr("scan grouped row", err)
		}
		sum, ok := new(big.Int).SetString(total, 10)
		if !ok {
			return nil, fmt.Errorf("grouped sum: %w: malformed total %q", employee.ErrStorage, total)
		}
		totals = append(totals, employee.GroupTotal{Initial: initial, Sum: sum})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("grouped sum", err)
	}
	return totals, nil
}

// inTx runs fn in a transaction and rolls back when fn or the commit fails.
func (s *EmployeeStore) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return storageErr(op+": commit", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, employee.ErrStorage, err)
}
