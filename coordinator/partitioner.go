// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package coordinator

import (
	"context"
	"fmt"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/metrics"
	"github.com/cubefs/distmatrix/proto"
)

// RowShares returns the row count of every worker: the first rows%workers
// workers take one extra row.
func RowShares(rows uint64, workers int) []uint64 {
	if workers <= 0 {
		return nil
	}
	w := uint64(workers)
	k, rem := rows/w, rows%w
	shares := make([]uint64, workers)
	for i := range shares {
		shares[i] = k
		if uint64(i) < rem {
			shares[i]++
		}
	}
	return shares
}

// Partition splits the rows of m into contiguous blocks, one per worker in
// list order, and records them in the matrix metadata. A worker that already
// holds an entry keeps its entry id, its range is updated and its placement
// is reset. Workers past the last row get nothing.
func Partition(ctx context.Context, m *matrix.Matrix, workers []string) error {
	span := trace.SpanFromContextSafe(ctx)
	if m == nil {
		return apierrors.ErrNilMatrix
	}
	if len(workers) == 0 {
		return apierrors.ErrNoWorkers
	}
	listed := make(map[string]struct{}, len(workers))
	for _, w := range workers {
		if _, ok := listed[w]; ok {
			return fmt.Errorf("%w: %s", apierrors.ErrDuplicateWorker, w)
		}
		listed[w] = struct{}{}
	}

	rows, cols := m.NumRows(), m.NumCols()
	meta := m.Meta()
	var (
		start    uint64
		assigned int
	)
	for i, share := range RowShares(rows, len(workers)) {
		if start >= rows {
			break
		}
		location := workers[i]
		rng := proto.Range{RowStart: start, RowLen: share, ColStart: 0, ColLen: cols}
		record := proto.PlacementRecord{
			Index: proto.DistributedIndex{WorkerIndex: uint64(i), PartitionIndex: proto.DefaultPartitionIndex},
		}

		if e := meta.GetByLocation(location); e != nil {
			alloc := e.Distributed()
			if alloc == nil {
				return fmt.Errorf("worker[%s] bound to a %s entry: %w",
					location, e.Allocation().Type(), apierrors.ErrLocationAlreadyAssigned)
			}
			if err := meta.UpdateRange(e.ID(), rng); err != nil {
				return err
			}
			alloc.UpdateRecord(record)
			span.Debugf("worker[%s] entry[%d] reassigned %s", location, e.ID(), rng)
		} else {
			id, err := meta.Insert(matrix.NewDistributedAllocation(location, record), rng)
			if err != nil {
				return fmt.Errorf("assign %s to worker[%s]: %w", rng, location, err)
			}
			span.Debugf("worker[%s] entry[%d] assigned %s", location, id, rng)
		}
		start += share
		assigned++
	}

	for _, e := range meta.ListByType(proto.AllocationTypeDistributed) {
		if _, ok := listed[e.Allocation().Location()]; !ok {
			span.Warnf("entry[%d] of worker[%s] is stale, worker not listed", e.ID(), e.Allocation().Location())
		}
	}

	metrics.PartitionEntries.Observe(float64(assigned))
	span.Infof("matrix[%s] %dx%d partitioned over %d of %d worker(s)",
		m.ID(), rows, cols, assigned, len(workers))
	return nil
}
