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

// Package transfer moves unplaced partitions of a matrix to their workers.
//
// Every adapter pairs one backend with the representations it can
// serialize. A transfer enumerates the distributed entries of the matrix,
// skips the placed ones, submits one asynchronous store per remaining entry
// tagged with its entry id and then drains the completions, in any order,
// into the entries' placement records.
package transfer

import (
	"context"
	"fmt"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/distmatrix/codec"
	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/metrics"
	"github.com/cubefs/distmatrix/proto"
	"github.com/cubefs/distmatrix/util"
	"github.com/cubefs/distmatrix/util/limiter"
)

// Adapter realizes the unplaced entries of a matrix for one backend.
type Adapter interface {
	Backend() proto.Backend
	Transfer(ctx context.Context, m *matrix.Matrix) error
}

type Config struct {
	// Compression of the block payload: none, lz4 or zstd.
	Compression string              `json:"compression"`
	Limit       limiter.LimitConfig `json:"limit"`
}

// denseTransfer is the flow shared by adapters serializing DenseFloat64.
type denseTransfer struct {
	backend     proto.Backend
	compression proto.Compression
	concurrency int
	store       storeFunc
}

func newDenseTransfer(backend proto.Backend, cfg *Config, store storeFunc) (*denseTransfer, error) {
	compression, ok := proto.ParseCompression(cfg.Compression)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apierrors.ErrUnknownCompression, cfg.Compression)
	}
	return &denseTransfer{
		backend:     backend,
		compression: compression,
		concurrency: cfg.Limit.Concurrency,
		store:       store,
	}, nil
}

// denseData matches the representation exhaustively, anything but a dense
// float64 matrix is refused.
func (t *denseTransfer) denseData(m *matrix.Matrix) (*matrix.DenseFloat64, error) {
	switch data := m.Data().(type) {
	case *matrix.DenseFloat64:
		return data, nil
	case *matrix.CSRFloat64:
		return nil, fmt.Errorf("%w: backend[%s] got %s",
			apierrors.ErrUnsupportedRepresentation, t.backend, data.Kind())
	default:
		return nil, fmt.Errorf("%w: backend[%s] got %T",
			apierrors.ErrUnsupportedRepresentation, t.backend, data)
	}
}

func (t *denseTransfer) transfer(ctx context.Context, m *matrix.Matrix) error {
	span := trace.SpanFromContextSafe(ctx)
	if m == nil {
		return apierrors.ErrNilMatrix
	}

	var pending []*matrix.Entry
	for _, e := range m.Meta().ListByType(proto.AllocationTypeDistributed) {
		if !e.Distributed().IsPlaced() {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		span.Debugf("matrix[%s] has no unplaced partitions", m.ID())
		return nil
	}

	// checked once, before any request goes out
	dense, err := t.denseData(m)
	if err != nil {
		span.Errorf("transfer matrix[%s] refused: %s", m.ID(), err)
		return err
	}

	backend := string(t.backend)
	failures := make(map[proto.EntryID]error)
	c := newCaller(t.concurrency, len(pending))
	defer c.close()

	for _, e := range pending {
		rng := e.Range()
		location := e.Allocation().Location()
		req, release, err := t.newRequest(m.ID(), e.ID(), dense, rng)
		if err != nil {
			span.Warnf("serialize entry[%d] %s for worker[%s] failed: %s", e.ID(), rng, location, err)
			failures[e.ID()] = err
			continue
		}

		span.Debugf("store entry[%d] %s to worker[%s], %d bytes", e.ID(), rng, location, len(req.Data))
		metrics.TransferRequests.WithLabelValues(backend).Inc()
		metrics.TransferBytes.WithLabelValues(backend).Add(float64(len(req.Data)))
		c.asyncStore(ctx, location, req, t.store, release)
	}

	for !c.isQueueEmpty() {
		res, err := c.nextResult(ctx)
		if err != nil {
			for id, location := range c.pending() {
				span.Warnf("entry[%d] at worker[%s] still outstanding: %s", id, location, err)
				failures[id] = err
			}
			break
		}
		if res.err != nil {
			span.Warnf("store entry[%d] to worker[%s] failed: %s", res.id, res.location, res.err)
			metrics.TransferCompletions.WithLabelValues(backend, metrics.ResultFailed).Inc()
			failures[res.id] = res.err
			continue
		}
		if err := t.resolve(m, res); err != nil {
			span.Errorf("resolve completion from worker[%s] failed: %s", res.location, err)
			metrics.TransferCompletions.WithLabelValues(backend, metrics.ResultFailed).Inc()
			failures[res.id] = err
			continue
		}
		metrics.TransferCompletions.WithLabelValues(backend, metrics.ResultSuccess).Inc()
	}

	if len(failures) > 0 {
		return &TransferError{Backend: t.backend, Failures: failures}
	}
	span.Infof("matrix[%s] placed %d partition(s) via %s", m.ID(), len(pending), t.backend)
	return nil
}

// newRequest serializes exactly the rows and columns of rng. release returns
// the pooled buffer once the payload is no longer referenced.
func (t *denseTransfer) newRequest(id proto.MatrixID, entryID proto.EntryID, dense *matrix.DenseFloat64,
	rng proto.Range,
) (*proto.StoreRequest, func(), error) {
	values, err := dense.Slice(rng.RowStart, rng.RowEnd(), rng.ColStart, rng.ColEnd())
	if err != nil {
		return nil, nil, err
	}
	raw := util.GetBuffer(codec.EncodedSize(len(values)))
	codec.PutFloat64s(raw, values)
	release := func() { util.PutBuffer(raw) }

	payload, err := codec.Compress(raw, t.compression)
	if err != nil {
		release()
		return nil, nil, err
	}
	if t.compression != proto.CompressionNone {
		release()
		release = nil
	}
	return &proto.StoreRequest{
		MatrixID:    id,
		EntryID:     entryID,
		NumRows:     rng.RowLen,
		NumCols:     rng.ColLen,
		Compression: t.compression,
		Data:        payload,
	}, release, nil
}

// resolve correlates a completion with its entry by id and marks it placed.
func (t *denseTransfer) resolve(m *matrix.Matrix, res *result) error {
	e := m.Meta().GetByID(res.id)
	if e == nil || e.Distributed() == nil {
		return fmt.Errorf("correlate completion of entry[%d]: %w", res.id, apierrors.ErrEntryNotFound)
	}
	return m.Meta().UpdatePlacement(res.id, proto.PlacementRecord{
		Index:   e.Distributed().Index(),
		Handle:  res.resp.Handle,
		NumRows: res.resp.NumRows,
		NumCols: res.resp.NumCols,
		Placed:  true,
	})
}
