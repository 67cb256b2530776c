package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/metrics"
	"github.com/cubefs/distmatrix/proto"
)

func newDense(t testing.TB, rows, cols uint64) *matrix.Matrix {
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = float64(i)
	}
	d, err := matrix.NewDenseFloat64(rows, cols, values)
	require.NoError(t, err)
	return matrix.New(d)
}

func workerList(n int) []string {
	workers := make([]string, n)
	for i := range workers {
		workers[i] = fmt.Sprintf("10.0.0.%d:7000", i+1)
	}
	return workers
}

func TestRowShares(t *testing.T) {
	require.Equal(t, []uint64{4, 3, 3}, RowShares(10, 3))
	require.Equal(t, []uint64{1, 1, 0, 0, 0}, RowShares(2, 5))
	require.Equal(t, []uint64{0, 0}, RowShares(0, 2))
	require.Equal(t, []uint64{7}, RowShares(7, 1))
	require.Nil(t, RowShares(7, 0))
}

func TestPartition_BalancedRemainder(t *testing.T) {
	m := newDense(t, 10, 4)
	workers := []string{"a", "b", "c"}
	require.NoError(t, Partition(context.Background(), m, workers))

	entries := m.Meta().ListByType(proto.AllocationTypeDistributed)
	require.Len(t, entries, 3)
	expected := []proto.Range{
		{RowStart: 0, RowLen: 4, ColLen: 4},
		{RowStart: 4, RowLen: 3, ColLen: 4},
		{RowStart: 7, RowLen: 3, ColLen: 4},
	}
	for i, e := range entries {
		require.Equal(t, workers[i], e.Allocation().Location())
		require.Equal(t, expected[i], e.Range())
		rec := e.Distributed().Record()
		require.False(t, rec.Placed)
		require.Equal(t, proto.DistributedIndex{WorkerIndex: uint64(i)}, rec.Index)
	}
}

func TestPartition_ExcessWorkers(t *testing.T) {
	m := newDense(t, 2, 3)
	workers := workerList(5)
	require.NoError(t, Partition(context.Background(), m, workers))

	entries := m.Meta().ListByType(proto.AllocationTypeDistributed)
	require.Len(t, entries, 2)
	require.Equal(t, proto.Range{RowStart: 0, RowLen: 1, ColLen: 3}, entries[0].Range())
	require.Equal(t, proto.Range{RowStart: 1, RowLen: 1, ColLen: 3}, entries[1].Range())
	for _, w := range workers[2:] {
		require.Nil(t, m.Meta().GetByLocation(w))
	}
}

func TestPartition_ZeroRows(t *testing.T) {
	m := newDense(t, 0, 3)
	require.NoError(t, Partition(context.Background(), m, workerList(3)))
	require.Equal(t, 0, m.Meta().Len())
}

func TestPartition_Preconditions(t *testing.T) {
	ctx := context.Background()
	require.ErrorIs(t, Partition(ctx, nil, workerList(1)), apierrors.ErrNilMatrix)

	m := newDense(t, 4, 1)
	require.ErrorIs(t, Partition(ctx, m, nil), apierrors.ErrNoWorkers)
	require.ErrorIs(t, Partition(ctx, m, []string{"a", "b", "a"}), apierrors.ErrDuplicateWorker)
	require.Equal(t, 0, m.Meta().Len())

	_, err := m.Meta().Insert(matrix.LocalAllocation{}, proto.Range{RowLen: 4, ColLen: 1})
	require.NoError(t, err)
	require.NoError(t, Partition(ctx, m, []string{"a"}))
	require.Equal(t, 2, m.Meta().Len())
}

func TestPartition_Coverage(t *testing.T) {
	ctx := context.Background()
	for rows := uint64(0); rows <= 17; rows++ {
		for w := 1; w <= 6; w++ {
			m := newDense(t, rows, 2)
			require.NoError(t, Partition(ctx, m, workerList(w)))

			entries := m.Meta().ListByType(proto.AllocationTypeDistributed)
			expectedEntries := w
			if rows < uint64(w) {
				expectedEntries = int(rows)
			}
			require.Len(t, entries, expectedEntries, "rows=%d workers=%d", rows, w)

			var next, min, max uint64
			min = rows
			for _, e := range entries {
				rng := e.Range()
				require.Equal(t, next, rng.RowStart)
				require.Equal(t, uint64(0), rng.ColStart)
				require.Equal(t, uint64(2), rng.ColLen)
				require.NotZero(t, rng.RowLen)
				if rng.RowLen < min {
					min = rng.RowLen
				}
				if rng.RowLen > max {
					max = rng.RowLen
				}
				next = rng.RowEnd()
			}
			require.Equal(t, rows, next)
			if len(entries) > 0 {
				require.LessOrEqual(t, max-min, uint64(1))
			}
		}
	}
}

func TestPartition_Reconcile(t *testing.T) {
	ctx := context.Background()
	m := newDense(t, 9, 2)
	require.NoError(t, Partition(ctx, m, []string{"a", "b", "c"}))

	a := m.Meta().GetByLocation("a")
	firstID := a.ID()
	require.NoError(t, m.Meta().UpdatePlacement(firstID, proto.PlacementRecord{Handle: "h", Placed: true}))

	// same list: ids and ranges are stable, placement resets
	require.NoError(t, Partition(ctx, m, []string{"a", "b", "c"}))
	a = m.Meta().GetByLocation("a")
	require.Equal(t, firstID, a.ID())
	require.Equal(t, proto.Range{RowLen: 3, ColLen: 2}, a.Range())
	require.False(t, a.Distributed().IsPlaced())
	require.Empty(t, a.Distributed().Record().Handle)

	// reordered and shrunk: ranges move, the dropped worker is left alone
	require.NoError(t, Partition(ctx, m, []string{"b", "a"}))
	require.Equal(t, proto.Range{RowStart: 5, RowLen: 4, ColLen: 2}, m.Meta().GetByLocation("a").Range())
	require.Equal(t, proto.Range{RowStart: 0, RowLen: 5, ColLen: 2}, m.Meta().GetByLocation("b").Range())
	require.Equal(t, uint64(1), m.Meta().GetByLocation("a").Distributed().Index().WorkerIndex)
	require.Equal(t, proto.Range{RowStart: 6, RowLen: 3, ColLen: 2}, m.Meta().GetByLocation("c").Range())
	require.Equal(t, 3, m.Meta().Len())
}

func TestPartition_ClosedMatrix(t *testing.T) {
	m := newDense(t, 3, 1)
	m.Close()
	require.ErrorIs(t, Partition(context.Background(), m, workerList(2)), apierrors.ErrMatrixClosed)
}

// pinnedAllocation is a non-distributed allocation bound to an address.
type pinnedAllocation struct{ location string }

func (a pinnedAllocation) Type() proto.AllocationType { return proto.AllocationTypeLocal }
func (a pinnedAllocation) Location() string           { return a.location }

func TestPartition_LocationHeldByOtherAllocation(t *testing.T) {
	m := newDense(t, 4, 1)
	id, err := m.Meta().Insert(pinnedAllocation{location: "b"}, proto.Range{RowLen: 4, ColLen: 1})
	require.NoError(t, err)

	err = Partition(context.Background(), m, []string{"a", "b"})
	require.ErrorIs(t, err, apierrors.ErrLocationAlreadyAssigned)
	require.Equal(t, proto.Range{RowLen: 4, ColLen: 1}, m.Meta().GetByID(id).Range())
	require.Nil(t, m.Meta().GetByID(id).Distributed())
}

func TestPartition_EntriesMetricNotPerMatrix(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m := newDense(t, 6, 1)
		require.NoError(t, Partition(ctx, m, workerList(2)))
		m.Close()
	}
	require.Equal(t, 1, testutil.CollectAndCount(metrics.PartitionEntries))
}

func BenchmarkPartition(b *testing.B) {
	ctx := context.Background()
	m := newDense(b, 1<<12, 8)
	workers := workerList(64)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Partition(ctx, m, workers); err != nil {
			b.Fatal(err)
		}
	}
}
