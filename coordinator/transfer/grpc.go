package transfer

import (
	"context"

	"github.com/cubefs/distmatrix/client"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/proto"
	"github.com/cubefs/distmatrix/util/limiter"
)

type WorkerClientGetter interface {
	GetClient(ctx context.Context, address string) (client.WorkerClient, error)
}

// GRPCDense sends DenseFloat64 partitions to workers over the worker store RPC.
type GRPCDense struct {
	*denseTransfer

	clients WorkerClientGetter
	limiter limiter.Limiter
}

func NewGRPCDense(cfg *Config, clients WorkerClientGetter) (*GRPCDense, error) {
	a := &GRPCDense{
		clients: clients,
		limiter: limiter.NewLimiter(cfg.Limit),
	}
	dt, err := newDenseTransfer(proto.BackendGRPC, cfg, a.storeBlock)
	if err != nil {
		return nil, err
	}
	a.denseTransfer = dt
	return a, nil
}

func (a *GRPCDense) Backend() proto.Backend {
	return proto.BackendGRPC
}

func (a *GRPCDense) Transfer(ctx context.Context, m *matrix.Matrix) error {
	return a.transfer(ctx, m)
}

func (a *GRPCDense) storeBlock(ctx context.Context, location string, req *proto.StoreRequest) (*proto.StoreResponse, error) {
	c, err := a.clients.GetClient(ctx, location)
	if err != nil {
		return nil, err
	}
	if err = a.limiter.WaitN(ctx, len(req.Data)); err != nil {
		return nil, err
	}
	return c.Store(ctx, req)
}
