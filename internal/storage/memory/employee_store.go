// Package memory provides in-memory storage engines for development and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/JakeFAU/employee-store/internal/employee"
)

// EmployeeStore keeps employee rows in a map guarded by a RWMutex. Writers
// hold the write lock for the whole operation, so readers never see a
// partially applied update or increment rule.
type EmployeeStore struct {
	mu   sync.RWMutex
	rows map[string]int64
}

var _ employee.Store = (*EmployeeStore)(nil)

// NewEmployeeStore constructs an EmployeeStore seeded with records. Later
// duplicates in seed overwrite earlier ones.
func NewEmployeeStore(seed ...employee.Record) *EmployeeStore {
	rows := make(map[string]int64, len(seed))
	for _, rec := range seed {
		rows[rec.Name] = rec.Value
	}
	return &EmployeeStore{rows: rows}
}

// List returns a copy of every row ordered by name.
func (s *EmployeeStore) List(_ context.Context) ([]employee.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(), nil
}

// Insert adds a row unless the name already exists.
func (s *EmployeeStore) Insert(_ context.Context, rec employee.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[rec.Name]; exists {
		return fmt.Errorf("insert %q: %w", rec.Name, employee.ErrConflict)
	}
	s.rows[rec.Name] = rec.Value
	return nil
}

// Update renames and revalues a row in one critical section.
func (s *EmployeeStore) Update(_ context.Context, originalName, newName string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[originalName]; !ok {
		return fmt.Errorf("update %q: %w", originalName, employee.ErrNotFound)
	}
	if newName != originalName {
		if _, taken := s.rows[newName]; taken {
			return fmt.Errorf("rename %q to %q: %w", originalName, newName, employee.ErrConflict)
		}
		delete(s.rows, originalName)
	}
	s.rows[newName] = value
	return nil
}

// Delete removes a row.
func (s *EmployeeStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[name]; !ok {
		return fmt.Errorf("delete %q: %w", name, employee.ErrNotFound)
	}
	delete(s.rows, name)
	return nil
}

// ApplyIncrementRule builds the adjusted table first and swaps it in only if
// every row could be adjusted.
func (s *EmployeeStore) ApplyIncrementRule(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]int64, len(s.rows))
	for name, value := range s.rows {
		delta := employee.Classify(name).Delta()
		if value > math.MaxInt64-delta {
			return 0, fmt.Errorf("increment %q: %w: value out of range", name, employee.ErrStorage)
		}
		next[name] = value + delta
	}
	s.rows = next
	return int64(len(next)), nil
}

// GroupedSum aggregates a snapshot with the shared accumulator.
func (s *EmployeeStore) GroupedSum(_ context.Context, q employee.GroupQuery) ([]employee.GroupTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc := employee.NewAccumulator(q)
	for name, value := range s.rows {
		acc.Add(employee.Record{Name: name, Value: value})
	}
	return acc.Totals(), nil
}

// Ping always succeeds.
func (s *EmployeeStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *EmployeeStore) Close() error { return nil }

func (s *EmployeeStore) snapshot() []employee.Record {
	out := make([]employee.Record, 0, len(s.rows))
	for name, value := range s.rows {
		out = append(out, employee.Record{Name: name, Value: value})
	}
	slices.SortFunc(out, func(a, b employee.Record) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
