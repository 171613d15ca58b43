// Package storetest holds the behavioral checks every employee.Store engine
// must pass. Engine packages call Run from their own tests.
package storetest

import (
	"context"
	"math"
	"math/big"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/employee-store/internal/employee"
)

// OpenFunc returns a fresh store containing seed.
type OpenFunc func(t *testing.T, seed ...employee.Record) employee.Store

// Run executes the conformance suite against the engine produced by open.
func Run(t *testing.T, open OpenFunc) {
	t.Helper()

	t.Run("EmptyListIsNotNil", func(t *testing.T) {
		s := open(t)
		got, err := s.List(context.Background())
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("InsertThenList", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5})
		require.NoError(t, s.Insert(context.Background(), employee.Record{Name: "Bob", Value: -7}))
		requireRows(t, s, map[string]int64{"Abe": 5, "Bob": -7})
	})

	t.Run("InsertDuplicateConflicts", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5})
		err := s.Insert(context.Background(), employee.Record{Name: "Abe", Value: 99})
		require.ErrorIs(t, err, employee.ErrConflict)
		requireRows(t, s, map[string]int64{"Abe": 5})
	})

	t.Run("NamesAreCaseSensitive", func(t *testing.T) {
		s := open(t, employee.Record{Name: "abe", Value: 1})
		require.NoError(t, s.Insert(context.Background(), employee.Record{Name: "Abe", Value: 2}))
		requireRows(t, s, map[string]int64{"abe": 1, "Abe": 2})
	})

	t.Run("UpdateMissingIsNotFound", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5})
		err := s.Update(context.Background(), "X", "Y", 1)
		require.ErrorIs(t, err, employee.ErrNotFound)
		requireRows(t, s, map[string]int64{"Abe": 5})
	})

	t.Run("UpdateRenamesAndRevalues", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5}, employee.Record{Name: "Bob", Value: 6})
		require.NoError(t, s.Update(context.Background(), "Abe", "Ann", 50))
		requireRows(t, s, map[string]int64{"Ann": 50, "Bob": 6})
	})

	t.Run("UpdateSameNameChangesValue", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5})
		require.NoError(t, s.Update(context.Background(), "Abe", "Abe", 8))
		requireRows(t, s, map[string]int64{"Abe": 8})
	})

	t.Run("UpdateOntoExistingNameConflicts", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5}, employee.Record{Name: "Bob", Value: 6})
		err := s.Update(context.Background(), "Abe", "Bob", 1)
		require.ErrorIs(t, err, employee.ErrConflict)
		requireRows(t, s, map[string]int64{"Abe": 5, "Bob": 6})
	})

	t.Run("DeleteRemovesOnlyTarget", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 5}, employee.Record{Name: "Bob", Value: 6})
		require.NoError(t, s.Delete(context.Background(), "Abe"))
		requireRows(t, s, map[string]int64{"Bob": 6})
	})

	t.Run("DeleteMissingIsNotFound", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Bob", Value: 6})
		err := s.Delete(context.Background(), "Abe")
		require.ErrorIs(t, err, employee.ErrNotFound)
		requireRows(t, s, map[string]int64{"Bob": 6})
	})

	t.Run("IncrementRuleAppliesBucketDeltas", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Eve", Value: 1},
			employee.Record{Name: "Gia", Value: 2},
			employee.Record{Name: "Bob", Value: 3},
			employee.Record{Name: "eve", Value: 4},
		)
		rows, err := s.ApplyIncrementRule(context.Background())
		require.NoError(t, err)
		require.EqualValues(t, 4, rows)
		requireRows(t, s, map[string]int64{"Eve": 2, "Gia": 12, "Bob": 103, "eve": 104})
	})

	t.Run("IncrementRuleIsNotIdempotent", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Eve", Value: 1},
			employee.Record{Name: "Gia", Value: 2},
			employee.Record{Name: "Bob", Value: 3},
		)
		for range 2 {
			_, err := s.ApplyIncrementRule(context.Background())
			require.NoError(t, err)
		}
		requireRows(t, s, map[string]int64{"Eve": 3, "Gia": 22, "Bob": 203})
	})

	t.Run("IncrementRuleOverflowRollsBack", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Eve", Value: 1},
			employee.Record{Name: "Zed", Value: math.MaxInt64 - 50},
		)
		_, err := s.ApplyIncrementRule(context.Background())
		require.ErrorIs(t, err, employee.ErrStorage)
		requireRows(t, s, map[string]int64{"Eve": 1, "Zed": math.MaxInt64 - 50})
	})

	t.Run("GroupedSumFiltersAndOrders", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Bob", Value: 20000},
			employee.Record{Name: "Abe", Value: 5000},
			employee.Record{Name: "Ann", Value: 6200},
			employee.Record{Name: "Dan", Value: 90000},
		)
		got, err := s.GroupedSum(context.Background(), employee.DefaultGroupQuery())
		require.NoError(t, err)
		requireTotals(t, []string{"A=11200", "B=20000"}, got)
	})

	t.Run("GroupedSumThresholdIsInclusive", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Cal", Value: 11170},
			employee.Record{Name: "Cy", Value: 1},
			employee.Record{Name: "Bea", Value: 11170},
		)
		got, err := s.GroupedSum(context.Background(), employee.DefaultGroupQuery())
		require.NoError(t, err)
		requireTotals(t, []string{"C=11171"}, got)
	})

	t.Run("GroupedSumEmptyIsNotNil", func(t *testing.T) {
		s := open(t, employee.Record{Name: "Abe", Value: 1})
		got, err := s.GroupedSum(context.Background(), employee.DefaultGroupQuery())
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("GroupedSumExceedsInt64", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Abe", Value: math.MaxInt64},
			employee.Record{Name: "Ann", Value: math.MaxInt64},
		)
		got, err := s.GroupedSum(context.Background(), employee.DefaultGroupQuery())
		require.NoError(t, err)
		want := new(big.Int).Mul(big.NewInt(math.MaxInt64), big.NewInt(2))
		requireTotals(t, []string{"A=" + want.String()}, got)
	})

	t.Run("GroupedSumMatchesListing", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(7, 11))
		letters := []string{"A", "B", "C", "D", "E", "G", "a"}
		seed := make([]employee.Record, 0, 60)
		for i := range 60 {
			seed = append(seed, employee.Record{
				Name:  letters[rng.IntN(len(letters))] + strings.Repeat("x", i+1),
				Value: rng.Int64N(4000) - 500,
			})
		}
		s := open(t, seed...)
		q := employee.GroupQuery{Prefixes: []string{"A", "B", "C", "a"}, Threshold: 2000}

		fromStore, err := s.GroupedSum(context.Background(), q)
		require.NoError(t, err)
		listing, err := s.List(context.Background())
		require.NoError(t, err)
		require.Equal(t, totalsStrings(employee.Aggregate(listing, q)), totalsStrings(fromStore))
	})

	t.Run("ConcurrentReadersSeeWholeIncrements", func(t *testing.T) {
		s := open(t,
			employee.Record{Name: "Eve", Value: 1},
			employee.Record{Name: "Gia", Value: 2},
			employee.Record{Name: "Bob", Value: 3},
		)
		const rounds = 20
		var wg sync.WaitGroup
		errs := make(chan error, rounds*2)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				if _, err := s.ApplyIncrementRule(context.Background()); err != nil {
					errs <- err
				}
			}
		}()
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range rounds {
					rows, err := s.List(context.Background())
					if err != nil {
						errs <- err
						return
					}
					if !consistentRounds(rows) {
						t.Errorf("observed partial increment: %+v", rows)
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		requireRows(t, s, map[string]int64{"Eve": 1 + rounds, "Gia": 2 + 10*rounds, "Bob": 3 + 100*rounds})
	})
}

// consistentRounds reports whether the Eve/Gia/Bob seed has seen the same
// number of increment rounds on every row.
func consistentRounds(rows []employee.Record) bool {
	seeds := map[string]int64{"Eve": 1, "Gia": 2, "Bob": 3}
	rounds := int64(-1)
	for _, rec := range rows {
		base, ok := seeds[rec.Name]
		if !ok {
			return false
		}
		diff := rec.Value - base
		delta := employee.Classify(rec.Name).Delta()
		if diff%delta != 0 {
			return false
		}
		if rounds >= 0 && diff/delta != rounds {
			return false
		}
		rounds = diff / delta
	}
	return len(rows) == len(seeds)
}

func requireRows(t *testing.T, s employee.Store, want map[string]int64) {
	t.Helper()
	rows, err := s.List(context.Background())
	require.NoError(t, err)
	got := make(map[string]int64, len(rows))
	for _, rec := range rows {
		_, dup := got[rec.Name]
		require.False(t, dup, "duplicate name %q in listing", rec.Name)
		got[rec.Name] = rec.Value
	}
	require.Equal(t, want, got)
}

func requireTotals(t *testing.T, want []string, got []employee.GroupTotal) {
	t.Helper()
	require.Equal(t, want, totalsStrings(got))
}

func totalsStrings(totals []employee.GroupTotal) []string {
	out := make([]string, 0, len(totals))
	for _, gt := range totals {
		out = append(out, gt.Initial+"="+gt.Sum.String())
	}
	return out
}
