package matrix

import (
	"sync/atomic"

	"github.com/cubefs/distmatrix/proto"
)

// AllocationDescriptor says how and where the data of one entry is held.
type AllocationDescriptor interface {
	Type() proto.AllocationType
	// Location is the worker address for distributed allocations, empty otherwise.
	Location() string
}

// DistributedAllocation binds one worker address to one placement record.
type DistributedAllocation struct {
	location string
	record   atomic.Pointer[proto.PlacementRecord]
}

func NewDistributedAllocation(location string, record proto.PlacementRecord) *DistributedAllocation {
	a := &DistributedAllocation{location: location}
	a.record.Store(&record)
	return a
}

func (a *DistributedAllocation) Type() proto.AllocationType {
	return proto.AllocationTypeDistributed
}

func (a *DistributedAllocation) Location() string {
	return a.location
}

// Record returns a copy of the current placement record.
func (a *DistributedAllocation) Record() proto.PlacementRecord {
	return *a.record.Load()
}

func (a *DistributedAllocation) Index() proto.DistributedIndex {
	return a.record.Load().Index
}

func (a *DistributedAllocation) IsPlaced() bool {
	return a.record.Load().Placed
}

// UpdateRecord replaces the whole record, the previous one is dropped
// including its placed flag.
func (a *DistributedAllocation) UpdateRecord(record proto.PlacementRecord) {
	a.record.Store(&record)
}

// LocalAllocation marks data resident in the coordinator's own memory.
type LocalAllocation struct{}

func (LocalAllocation) Type() proto.AllocationType {
	return proto.AllocationTypeLocal
}

func (LocalAllocation) Location() string {
	return ""
}
