// Package sqlite implements employee.Store on SQLite using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JakeFAU/employee-store/internal/employee"
)

//go:embed schema.sql
var schemaSQL string

var (
	incrementCase = employee.IncrementCaseSQL("name")

	overflowQuery = `SELECT COUNT(*) FROM employees WHERE value > ? - (` + incrementCase + `)`
	incrementStmt = `UPDATE employees SET value = value + ` + incrementCase
)

// EmployeeStore persists employees in a SQLite database.
type EmployeeStore struct {
	db *sql.DB
}

var _ employee.Store = (*EmployeeStore)(nil)

// Open creates or opens the database at path (":memory:" for a private
// in-memory database), applies pragmas and ensures the schema exists.
//
// The pool is limited to a single connection: SQLite allows one writer at a
// time, and an in-memory database lives only as long as its connection.
func Open(ctx context.Context, path string) (*EmployeeStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &EmployeeStore{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *EmployeeStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite database: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *EmployeeStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// List returns every employee ordered by name.
func (s *EmployeeStore) List(ctx context.Context) ([]employee.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM employees ORDER BY name`)
	if err != nil {
		return nil, storageErr("list employees", err)
	}
	defer rows.Close()

	records := make([]employee.Record, 0)
	for rows.Next() {
		var rec employee.Record
		if err := rows.Scan(&rec.Name, &rec.Value); err != nil {
			return nil, storageErr("scan employee", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list employees", err)
	}
	return records, nil
}

// Insert adds rec. The existence check runs in the same transaction so a
// table created without a unique constraint still rejects duplicates.
func (s *EmployeeStore) Insert(ctx context.Context, rec employee.Record) error {
	return s.inTx(ctx, "insert employee", func(tx *sql.Tx) error {
		exists, err := nameExists(ctx, tx, rec.Name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("insert %q: %w", rec.Name, employee.ErrConflict)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO employees (name, value) VALUES (?, ?)`, rec.Name, rec.Value)
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %q: %w", rec.Name, employee.ErrConflict)
		}
		if err != nil {
			return storageErr("insert employee", err)
		}
		return nil
	})
}

// Update renames and revalues one employee in a single transaction.
func (s *EmployeeStore) Update(ctx context.Context, originalName, newName string, value int64) error {
	return s.inTx(ctx, "update employee", func(tx *sql.Tx) error {
		exists, err := nameExists(ctx, tx, originalName)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("update %q: %w", originalName, employee.ErrNotFound)
		}
		if newName != originalName {
			taken, err := nameExists(ctx, tx, newName)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("rename %q to %q: %w", originalName, newName, employee.ErrConflict)
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE employees SET name = ?, value = ? WHERE name = ?`,
			newName, value, originalName,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("rename %q to %q: %w", originalName, newName, employee.ErrConflict)
		}
		if err != nil {
			return storageErr("update employee", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("update employee", err)
		}
		if n == 0 {
			return fmt.Errorf("update %q: %w", originalName, employee.ErrNotFound)
		}
		return nil
	})
}

// Delete removes one employee.
func (s *EmployeeStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE name = ?`, name)
	if err != nil {
		return storageErr("delete employee", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete employee", err)
	}
	if n == 0 {
		return fmt.Errorf("delete %q: %w", name, employee.ErrNotFound)
	}
	return nil
}

// ApplyIncrementRule adjusts every row with one UPDATE inside a transaction.
// SQLite promotes overflowing integer sums to REAL instead of failing, so
// rows that would leave the int64 range are rejected before the update.
func (s *EmployeeStore) ApplyIncrementRule(ctx context.Context) (int64, error) {
	var affected int64
	err := s.inTx(ctx, "apply increment rule", func(tx *sql.Tx) error {
		var overflowing int64
		if err := tx.QueryRowContext(ctx, overflowQuery, int64(math.MaxInt64)).Scan(&overflowing); err != nil {
			return storageErr("check increment range", err)
		}
		if overflowing > 0 {
			return fmt.Errorf("apply increment rule: %w: %d values out of range", employee.ErrStorage, overflowing)
		}
		res, err := tx.ExecContext(ctx, incrementStmt)
		if err != nil {
			return storageErr("apply increment rule", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return storageErr("apply increment rule", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// GroupedSum narrows rows to the requested prefixes in SQL and sums them with
// the shared accumulator, which never overflows.
func (s *EmployeeStore) GroupedSum(ctx context.Context, q employee.GroupQuery) ([]employee.GroupTotal, error) {
	keys := q.Keys()
	if len(keys) == 0 {
		return []employee.GroupTotal{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM employees WHERE substr(name, 1, 1) IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, storageErr("grouped sum", err)
	}
	defer rows.Close()

	acc := employee.NewAccumulator(q)
	for rows.Next() {
		var rec employee.Record
		if err := rows.Scan(&rec.Name, &rec.Value); err != nil {
			return nil, storageErr("scan grouped row", err)
		}
		acc.Add(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("grouped sum", err)
	}
	return acc.Totals(), nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *EmployeeStore) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}
	return nil
}

func nameExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM employees WHERE name = ?`, name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, storageErr("lookup employee", err)
	default:
		return true, nil
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT:
		return true
	default:
		return false
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, employee.ErrStorage, err)
}
