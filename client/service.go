package client

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cubefs/distmatrix/proto"
)

const (
	workerServiceName = "distmatrix.Worker"
	workerStoreMethod = "/distmatrix.Worker/Store"
)

// WorkerClient is the coordinator side of the worker service.
type WorkerClient interface {
	Store(ctx context.Context, in *proto.StoreRequest, opts ...grpc.CallOption) (*proto.StoreResponse, error)
}

// WorkerServer is implemented by workers that accept partitions.
type WorkerServer interface {
	Store(ctx context.Context, in *proto.StoreRequest) (*proto.StoreResponse, error)
}

type workerClient struct {
	cc grpc.ClientConnInterface
}

func NewWorkerClient(cc grpc.ClientConnInterface) WorkerClient {
	return &workerClient{cc: cc}
}

func (c *workerClient) Store(ctx context.Context, in *proto.StoreRequest, opts ...grpc.CallOption) (*proto.StoreResponse, error) {
	out := new(proto.StoreResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, workerStoreMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterWorkerServer(s grpc.ServiceRegistrar, srv WorkerServer) {
	s.RegisterService(&WorkerServiceDesc, srv)
}

func workerStoreHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(proto.StoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkerServer).Store(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: workerStoreMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkerServer).Store(ctx, req.(*proto.StoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var WorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: workerServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Store",
			Handler:    workerStoreHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "worker.proto",
}
