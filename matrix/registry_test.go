package matrix

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/proto"
)

func TestRegistry_Insert(t *testing.T) {
	r := NewRegistry()
	rng := proto.Range{RowStart: 0, RowLen: 4, ColLen: 3}

	id1, err := r.Insert(NewDistributedAllocation("w1", proto.PlacementRecord{}), rng)
	require.NoError(t, err)
	id2, err := r.Insert(NewDistributedAllocation("w2", proto.PlacementRecord{}), rng)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	_, err = r.Insert(NewDistributedAllocation("w1", proto.PlacementRecord{}), rng)
	require.ErrorIs(t, err, apierrors.ErrLocationAlreadyAssigned)

	// local allocations have no location and never collide
	_, err = r.Insert(LocalAllocation{}, rng)
	require.NoError(t, err)
	_, err = r.Insert(LocalAllocation{}, rng)
	require.NoError(t, err)
	require.Equal(t, 4, r.Len())

	e := r.GetByLocation("w2")
	require.NotNil(t, e)
	require.Equal(t, id2, e.ID())
	require.Equal(t, "w2", e.Allocation().Location())
	require.Equal(t, e, r.GetByID(id2))

	require.Nil(t, r.GetByID(100))
	require.Nil(t, r.GetByLocation("w3"))
}

func TestRegistry_ListByType(t *testing.T) {
	r := NewRegistry()
	for _, loc := range []string{"w1", "w2", "w3"} {
		_, err := r.Insert(NewDistributedAllocation(loc, proto.PlacementRecord{}), proto.Range{})
		require.NoError(t, err)
		_, err = r.Insert(LocalAllocation{}, proto.Range{})
		require.NoError(t, err)
	}

	distributed := r.ListByType(proto.AllocationTypeDistributed)
	require.Len(t, distributed, 3)
	for i, loc := range []string{"w1", "w2", "w3"} {
		require.Equal(t, loc, distributed[i].Allocation().Location())
		require.NotNil(t, distributed[i].Distributed())
		if i > 0 {
			require.Less(t, distributed[i-1].ID(), distributed[i].ID())
		}
	}

	local := r.ListByType(proto.AllocationTypeLocal)
	require.Len(t, local, 3)
	require.Nil(t, local[0].Distributed())
}

func TestRegistry_Update(t *testing.T) {
	r := NewRegistry()
	rec := proto.PlacementRecord{Index: proto.DistributedIndex{WorkerIndex: 1}}
	id, err := r.Insert(NewDistributedAllocation("w1", rec), proto.Range{RowLen: 4, ColLen: 2})
	require.NoError(t, err)

	newRange := proto.Range{RowStart: 4, RowLen: 3, ColLen: 2}
	require.NoError(t, r.UpdateRange(id, newRange))
	e := r.GetByID(id)
	require.Equal(t, newRange, e.Range())
	// range update keeps the record
	require.Equal(t, rec, e.Distributed().Record())

	placed := proto.PlacementRecord{
		Index:   rec.Index,
		Handle:  "h1",
		NumRows: 3,
		NumCols: 2,
		Placed:  true,
	}
	require.NoError(t, r.UpdatePlacement(id, placed))
	require.Equal(t, placed, e.Distributed().Record())
	require.True(t, e.Distributed().IsPlaced())
	require.Equal(t, newRange, e.Range())

	// replacing drops the placed flag of the old record
	e.Distributed().UpdateRecord(proto.PlacementRecord{Index: rec.Index})
	require.False(t, e.Distributed().IsPlaced())
	require.Equal(t, "", e.Distributed().Record().Handle)

	require.ErrorIs(t, r.UpdateRange(99, newRange), apierrors.ErrEntryNotFound)
	require.ErrorIs(t, r.UpdatePlacement(99, placed), apierrors.ErrEntryNotFound)

	localID, err := r.Insert(LocalAllocation{}, proto.Range{})
	require.NoError(t, err)
	require.ErrorIs(t, r.UpdatePlacement(localID, placed), apierrors.ErrEntryNotFound)
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	r := NewRegistry()
	id, err := r.Insert(NewDistributedAllocation("w1", proto.PlacementRecord{}), proto.Range{})
	require.NoError(t, err)
	a := r.GetByID(id).Distributed()

	var (
		wg   sync.WaitGroup
		torn int32
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			a.UpdateRecord(proto.PlacementRecord{Handle: "h", NumRows: 1, NumCols: 1, Placed: true})
			a.UpdateRecord(proto.PlacementRecord{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			rec := a.Record()
			// never torn: a placed record always carries its handle
			if rec.Placed && rec.Handle != "h" {
				atomic.AddInt32(&torn, 1)
			}
		}
	}()
	wg.Wait()
	require.Equal(t, int32(0), torn)
}
