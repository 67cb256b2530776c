package matrix

import (
	"sync"

	"github.com/cubefs/cubefs/util/btree"

	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/proto"
)

const registryBtreeDegree = 8

// Entry is one (matrix, location) metadata record.
type Entry struct {
	id         proto.EntryID
	allocation AllocationDescriptor

	rng  proto.Range
	lock sync.RWMutex
}

func (e *Entry) ID() proto.EntryID {
	return e.id
}

func (e *Entry) Range() proto.Range {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.rng
}

func (e *Entry) Allocation() AllocationDescriptor {
	return e.allocation
}

// Distributed returns the distributed allocation of the entry, nil for other kinds.
func (e *Entry) Distributed() *DistributedAllocation {
	a, _ := e.allocation.(*DistributedAllocation)
	return a
}

type entryItem struct {
	id    proto.EntryID
	entry *Entry
}

func (i *entryItem) Less(than btree.Item) bool {
	return i.id < than.(*entryItem).id
}

func (i *entryItem) Copy() btree.Item {
	return &entryItem{id: i.id, entry: i.entry}
}

// Registry owns the metadata entries of one matrix.
// Entries are never removed individually, only all at once by Close.
type Registry struct {
	nextID     proto.EntryID
	entries    *btree.BTree
	byID       map[proto.EntryID]*Entry
	byLocation map[string]proto.EntryID
	closed     bool

	lock sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		entries:    btree.New(registryBtreeDegree),
		byID:       make(map[proto.EntryID]*Entry),
		byLocation: make(map[string]proto.EntryID),
	}
}

// Insert adds an entry and returns its fresh identity.
func (r *Registry) Insert(allocation AllocationDescriptor, rng proto.Range) (proto.EntryID, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.closed {
		return 0, apierrors.ErrMatrixClosed
	}
	location := allocation.Location()
	if location != "" {
		if _, ok := r.byLocation[location]; ok {
			return 0, apierrors.ErrLocationAlreadyAssigned
		}
	}

	r.nextID++
	e := &Entry{id: r.nextID, allocation: allocation, rng: rng}
	r.byID[e.id] = e
	if location != "" {
		r.byLocation[location] = e.id
	}
	r.entries.ReplaceOrInsert(&entryItem{id: e.id, entry: e})
	return e.id, nil
}

// GetByID returns nil if id is unknown.
func (r *Registry) GetByID(id proto.EntryID) *Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.byID[id]
}

// GetByLocation returns nil if no entry is bound to location.
func (r *Registry) GetByLocation(location string) *Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	id, ok := r.byLocation[location]
	if !ok {
		return nil
	}
	return r.byID[id]
}

func (r *Registry) UpdateRange(id proto.EntryID, rng proto.Range) error {
	e := r.GetByID(id)
	if e == nil {
		return apierrors.ErrEntryNotFound
	}
	e.lock.Lock()
	e.rng = rng
	e.lock.Unlock()
	return nil
}

// UpdatePlacement replaces the placement record of a distributed entry.
func (r *Registry) UpdatePlacement(id proto.EntryID, record proto.PlacementRecord) error {
	e := r.GetByID(id)
	if e == nil {
		return apierrors.ErrEntryNotFound
	}
	a := e.Distributed()
	if a == nil {
		return apierrors.ErrEntryNotFound
	}
	a.UpdateRecord(record)
	return nil
}

// ListByType returns the entries of one allocation type ordered by id.
func (r *Registry) ListByType(typ proto.AllocationType) []*Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var ret []*Entry
	r.entries.Ascend(func(i btree.Item) bool {
		e := i.(*entryItem).entry
		if e.allocation.Type() == typ {
			ret = append(ret, e)
		}
		return true
	})
	return ret
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.byID)
}

// Close drops every entry, further inserts fail.
func (r *Registry) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.closed = true
	r.entries = btree.New(registryBtreeDegree)
	r.byID = make(map[proto.EntryID]*Entry)
	r.byLocation = make(map[string]proto.EntryID)
}
