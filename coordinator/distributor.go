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
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/distmatrix/coordinator/transfer"
	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/metrics"
	"github.com/cubefs/distmatrix/proto"
)

const defaultBackend = proto.BackendGRPC

type Config struct {
	// Backend used by Distribute, grpc when empty.
	Backend proto.Backend `json:"backend"`
	// TransferTimeoutMs bounds one transfer drain, 0 waits for every worker.
	TransferTimeoutMs int64 `json:"transfer_timeout_ms"`
}

// Distributor partitions matrices over workers and hands the partitions to
// the adapter of the selected backend.
type Distributor struct {
	cfg      Config
	adapters map[proto.Backend]transfer.Adapter
}

func NewDistributor(cfg *Config, adapters ...transfer.Adapter) *Distributor {
	d := &Distributor{
		cfg:      *cfg,
		adapters: make(map[proto.Backend]transfer.Adapter, len(adapters)),
	}
	if d.cfg.Backend == "" {
		d.cfg.Backend = defaultBackend
	}
	for _, a := range adapters {
		d.adapters[a.Backend()] = a
	}
	return d
}

// Distribute runs DistributeWith on the configured backend.
func (d *Distributor) Distribute(ctx context.Context, m *matrix.Matrix, workers []string) error {
	return d.DistributeWith(ctx, d.cfg.Backend, m, workers)
}

// DistributeWith partitions m over workers and transfers every unplaced
// partition. Every call repartitions, so every partition is sent again.
func (d *Distributor) DistributeWith(ctx context.Context, backend proto.Backend, m *matrix.Matrix,
	workers []string,
) (err error) {
	span, ctx := trace.StartSpanFromContext(ctx, "distribute")
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultFailed
		}
		metrics.DistributeDuration.WithLabelValues(string(backend), result).Observe(time.Since(start).Seconds())
	}()

	adapter, ok := d.adapters[backend]
	if !ok {
		return fmt.Errorf("%w: %q", apierrors.ErrUnknownBackend, backend)
	}
	if m == nil {
		return apierrors.ErrNilMatrix
	}

	if err = Partition(ctx, m, workers); err != nil {
		span.Errorf("partition matrix[%s] failed: %s", m.ID(), err)
		return err
	}

	if d.cfg.TransferTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(d.cfg.TransferTimeoutMs)*time.Millisecond)
		defer cancel()
	}
	if err = adapter.Transfer(ctx, m); err != nil {
		span.Errorf("transfer matrix[%s] via %s failed: %s", m.ID(), backend, err)
		return err
	}
	span.Infof("matrix[%s] distributed via %s in %s", m.ID(), backend, time.Since(start))
	return nil
}

// PartitionInfo reports one distributed entry of a matrix.
type PartitionInfo struct {
	EntryID  proto.EntryID         `json:"entry_id"`
	Location string                `json:"location"`
	Range    proto.Range           `json:"range"`
	Record   proto.PlacementRecord `json:"record"`
}

// Placement lists the distributed entries of m in entry id order.
func Placement(m *matrix.Matrix) []PartitionInfo {
	entries := m.Meta().ListByType(proto.AllocationTypeDistributed)
	infos := make([]PartitionInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, PartitionInfo{
			EntryID:  e.ID(),
			Location: e.Allocation().Location(),
			Range:    e.Range(),
			Record:   e.Distributed().Record(),
		})
	}
	return infos
}
