package client

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/cubefs/distmatrix/proto"
)

type (
	WorkerConfig struct {
		TransportConfig TransportConfig `json:"transport"`
	}

	// WorkerClientMgr keeps one grpc connection per worker address.
	WorkerClientMgr struct {
		// workers maintains grpc client by worker address
		workers   sync.Map
		singleRun singleflight.Group
		tc        TransportConfig
		dialOpts  []grpc.DialOption
	}
	worker struct {
		conn *grpc.ClientConn
		tc   *TransportConfig

		WorkerClient
	}
)

// NewWorkerClientMgr builds the manager, extra dial options are appended to
// the generated ones.
func NewWorkerClientMgr(cfg *WorkerConfig, extraOpts ...grpc.DialOption) *WorkerClientMgr {
	tc := cfg.TransportConfig.withDefaults()
	return &WorkerClientMgr{
		tc:       tc,
		dialOpts: append(generateDialOpts(&tc), extraOpts...),
	}
}

// GetClient returns the client of a worker address. The connection is
// established lazily so this call does not wait for the worker.
func (m *WorkerClientMgr) GetClient(ctx context.Context, address string) (WorkerClient, error) {
	if v, ok := m.workers.Load(address); ok {
		return v.(*worker), nil
	}

	v, err, _ := m.singleRun.Do(address, func() (interface{}, error) {
		if v, ok := m.workers.Load(address); ok {
			return v, nil
		}
		conn, err := grpc.DialContext(ctx, address, m.dialOpts...)
		if err != nil {
			return nil, err
		}
		w := &worker{
			conn:         conn,
			tc:           &m.tc,
			WorkerClient: NewWorkerClient(conn),
		}
		m.workers.Store(address, w)
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*worker), nil
}

func (m *WorkerClientMgr) Close() error {
	m.workers.Range(func(key, value interface{}) bool {
		value.(*worker).conn.Close()
		m.workers.Delete(key)
		return true
	})
	return nil
}

// Store tags the request with its entry id and bounds it by MaxTimeoutMs.
func (w *worker) Store(ctx context.Context, in *proto.StoreRequest, opts ...grpc.CallOption) (*proto.StoreResponse, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, proto.EntryIdKey, strconv.FormatUint(in.EntryID, 10))
	if w.tc.MaxTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(w.tc.MaxTimeoutMs)*time.Millisecond)
		defer cancel()
	}
	return w.WorkerClient.Store(ctx, in, opts...)
}
