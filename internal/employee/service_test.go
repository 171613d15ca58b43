package employee_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/employee-store/internal/employee"
	"github.com/JakeFAU/employee-store/internal/storage/memory"
)

func newService(t *testing.T, seed ...employee.Record) *employee.Service {
	t.Helper()
	return employee.NewService(memory.NewEmployeeStore(seed...), zap.NewNop())
}

func TestServiceAddAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)

	require.NoError(t, svc.Add(ctx, employee.Record{Name: "Abe", Value: 5000}))
	require.ErrorIs(t, svc.Add(ctx, employee.Record{Name: "Abe", Value: 1}), employee.ErrConflict)
	require.ErrorIs(t, svc.Add(ctx, employee.Record{Name: "  ", Value: 1}), employee.ErrValidation)

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []employee.Record{{Name: "Abe", Value: 5000}}, rows)
}

func TestServiceKeepsNamesUntrimmed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	require.NoError(t, svc.Add(ctx, employee.Record{Name: " Abe", Value: 1}))
	require.NoError(t, svc.Add(ctx, employee.Record{Name: "Abe", Value: 2}))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestServiceUpdateValidatesBothNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t, employee.Record{Name: "Abe", Value: 1})

	require.ErrorIs(t, svc.Update(ctx, "", "Ann", 1), employee.ErrValidation)
	require.ErrorIs(t, svc.Update(ctx, "Abe", " ", 1), employee.ErrValidation)
	require.ErrorIs(t, svc.Update(ctx, "Zed", "Ann", 1), employee.ErrNotFound)
	require.NoError(t, svc.Update(ctx, "Abe", "Ann", 50))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []employee.Record{{Name: "Ann", Value: 50}}, rows)
}

func TestServiceDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t, employee.Record{Name: "Abe", Value: 1})

	require.ErrorIs(t, svc.Delete(ctx, ""), employee.ErrValidation)
	require.NoError(t, svc.Delete(ctx, "Abe"))
	require.ErrorIs(t, svc.Delete(ctx, "Abe"), employee.ErrNotFound)
}

func TestServiceBulkAdjust(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t,
		employee.Record{Name: "Eve", Value: 1},
		employee.Record{Name: "Gia", Value: 2},
		employee.Record{Name: "Bob", Value: 3},
	)

	require.NoError(t, svc.BulkAdjust(ctx))
	require.NoError(t, svc.BulkAdjust(ctx))

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []employee.Record{
		{Name: "Bob", Value: 203},
		{Name: "Eve", Value: 3},
		{Name: "Gia", Value: 22},
	}, rows)
}

func TestServiceBulkAdjustOverflowLeavesRowsUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t,
		employee.Record{Name: "Abe", Value: 1},
		employee.Record{Name: "Bob", Value: math.MaxInt64},
	)

	require.ErrorIs(t, svc.BulkAdjust(ctx), employee.ErrStorage)

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows[0].Value)
	require.Equal(t, int64(math.MaxInt64), rows[1].Value)
}

func TestServiceGroupedSumPathsAgree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t,
		employee.Record{Name: "Abe", Value: 5000},
		employee.Record{Name: "Amy", Value: 6200},
		employee.Record{Name: "Bob", Value: 20000},
		employee.Record{Name: "Cy", Value: 100},
	)

	fromStore, err := svc.GroupedSum(ctx, employee.DefaultGroupQuery())
	require.NoError(t, err)
	fromListing, err := svc.GroupedSumFromListing(ctx, employee.DefaultGroupQuery())
	require.NoError(t, err)

	require.Equal(t, fromStore, fromListing)
	require.Len(t, fromStore, 2)
	require.Equal(t, "11200", fromStore[0].Sum.String())
}

func TestServiceGroupedSumRejectsBadPrefix(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	_, err := svc.GroupedSum(context.Background(), employee.GroupQuery{Prefixes: []string{"AB"}})
	require.ErrorIs(t, err, employee.ErrValidation)
	_, err = svc.GroupedSumFromListing(context.Background(), employee.GroupQuery{Prefixes: []string{""}})
	require.ErrorIs(t, err, employee.ErrValidation)
}

type failingStore struct {
	employee.Store
	err error
}

func (f failingStore) List(context.Context) ([]employee.Record, error) { return nil, f.err }

func (f failingStore) Insert(context.Context, employee.Record) error { return f.err }

func (f failingStore) ApplyIncrementRule(context.Context) (int64, error) { return 0, f.err }

func (f failingStore) GroupedSum(context.Context, employee.GroupQuery) ([]employee.GroupTotal, error) {
	return nil, f.err
}

func (f failingStore) Ping(context.Context) error { return f.err }

func TestServiceLogsStorageFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	diskErr := errors.New("disk full")
	storeErr := errors.Join(employee.ErrStorage, diskErr)
	svc := employee.NewService(failingStore{err: storeErr}, zap.New(core))
	ctx := context.Background()

	err := svc.Add(ctx, employee.Record{Name: "Abe", Value: 1})
	require.ErrorIs(t, err, employee.ErrStorage)
	require.ErrorIs(t, err, diskErr)

	_, err = svc.List(ctx)
	require.ErrorIs(t, err, employee.ErrStorage)
	require.ErrorIs(t, svc.BulkAdjust(ctx), employee.ErrStorage)
	_, err = svc.GroupedSumFromListing(ctx, employee.DefaultGroupQuery())
	require.ErrorIs(t, err, employee.ErrStorage)
	require.ErrorIs(t, svc.Ping(ctx), employee.ErrStorage)

	failures := logs.FilterMessage("employee operation failed").All()
	require.Len(t, failures, 4)
	require.Equal(t, "add", failures[0].ContextMap()["op"])
	require.Equal(t, "storage", failures[0].ContextMap()["outcome"])
}

func TestServiceLogsRejectionsAtInfo(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	svc := employee.NewService(memory.NewEmployeeStore(), zap.New(core))

	require.ErrorIs(t, svc.Delete(context.Background(), "ghost"), employee.ErrNotFound)

	entries := logs.FilterMessage("employee operation rejected").All()
	require.Len(t, entries, 1)
	require.Equal(t, "not_found", entries[0].ContextMap()["outcome"])
}

func TestServiceNilLoggerIsAllowed(t *testing.T) {
	t.Parallel()

	svc := employee.NewService(memory.NewEmployeeStore(), nil)
	require.NoError(t, svc.Ping(context.Background()))
}
