package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cubefs/distmatrix/blobstore"
	"github.com/cubefs/distmatrix/client"
	"github.com/cubefs/distmatrix/codec"
	"github.com/cubefs/distmatrix/coordinator/transfer"
	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/proto"
)

// blockServer keeps every stored block in memory, keyed by worker authority
// and entry id.
type blockServer struct {
	lock   sync.Mutex
	blocks map[string][]float64
	stores int
}

func (s *blockServer) Store(ctx context.Context, in *proto.StoreRequest) (*proto.StoreResponse, error) {
	values, err := codec.DecodeBlock(in.Data, in.Compression)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	md, _ := metadata.FromIncomingContext(ctx)
	ids := md.Get(proto.EntryIdKey)
	if len(ids) != 1 || ids[0] != strconv.FormatUint(in.EntryID, 10) {
		return nil, status.Error(codes.InvalidArgument, "entry id mismatch")
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.stores++
	handle := in.MatrixID + "/" + ids[0]
	s.blocks[handle] = values
	return &proto.StoreResponse{Handle: handle, NumRows: in.NumRows, NumCols: in.NumCols}, nil
}

func (s *blockServer) count() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stores
}

func newGRPCDistributor(t *testing.T, cfg *Config) (*Distributor, *blockServer) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	bs := &blockServer{blocks: make(map[string][]float64)}
	client.RegisterWorkerServer(srv, bs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	mgr := client.NewWorkerClientMgr(&client.WorkerConfig{}, grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	t.Cleanup(func() { mgr.Close() })

	adapter, err := transfer.NewGRPCDense(&transfer.Config{Compression: "zstd"}, mgr)
	require.NoError(t, err)
	return NewDistributor(cfg, adapter), bs
}

func passthroughWorkers(n int) []string {
	workers := make([]string, n)
	for i := range workers {
		workers[i] = "passthrough:///worker-" + strconv.Itoa(i)
	}
	return workers
}

func TestDistributor_Distribute(t *testing.T) {
	ctx := context.Background()
	d, bs := newGRPCDistributor(t, &Config{TransferTimeoutMs: 10000})
	m := newDense(t, 10, 3)
	workers := passthroughWorkers(3)

	require.NoError(t, d.Distribute(ctx, m, workers))
	require.Equal(t, 3, bs.count())

	infos := Placement(m)
	require.Len(t, infos, 3)
	dense := m.Data().(*matrix.DenseFloat64)
	for i, info := range infos {
		require.Equal(t, workers[i], info.Location)
		require.True(t, info.Record.Placed)
		require.Equal(t, info.Range.RowLen, info.Record.NumRows)
		require.Equal(t, uint64(3), info.Record.NumCols)
		require.Equal(t, uint64(i), info.Record.Index.WorkerIndex)

		expected, err := dense.Slice(info.Range.RowStart, info.Range.RowEnd(), 0, 3)
		require.NoError(t, err)
		require.Equal(t, expected, bs.blocks[info.Record.Handle])
	}

	data, err := json.Marshal(infos)
	require.NoError(t, err)
	require.Contains(t, string(data), `"placed":true`)

	// a second call repartitions to identical ranges and sends everything again
	require.NoError(t, d.Distribute(ctx, m, workers))
	require.Equal(t, 6, bs.count())
	again := Placement(m)
	for i := range infos {
		require.Equal(t, infos[i].EntryID, again[i].EntryID)
		require.Equal(t, infos[i].Range, again[i].Range)
		require.Equal(t, infos[i].Record, again[i].Record)
	}
}

func TestDistributor_Unsupported(t *testing.T) {
	d, bs := newGRPCDistributor(t, &Config{})
	csr, err := matrix.NewCSRFloat64(2, 2, []uint64{0, 1, 2}, []uint64{0, 1}, []float64{1, 2})
	require.NoError(t, err)
	m := matrix.New(csr)

	err = d.Distribute(context.Background(), m, passthroughWorkers(2))
	require.ErrorIs(t, err, apierrors.ErrUnsupportedRepresentation)
	require.Equal(t, 0, bs.count())
	// partitioning still took place
	require.Len(t, Placement(m), 2)
}

func TestDistributor_Errors(t *testing.T) {
	ctx := context.Background()
	d, _ := newGRPCDistributor(t, &Config{})
	m := newDense(t, 4, 2)

	require.ErrorIs(t, d.DistributeWith(ctx, proto.BackendBlob, m, passthroughWorkers(1)), apierrors.ErrUnknownBackend)
	require.ErrorIs(t, d.Distribute(ctx, nil, passthroughWorkers(1)), apierrors.ErrNilMatrix)
	require.ErrorIs(t, d.Distribute(ctx, m, nil), apierrors.ErrNoWorkers)
	require.Equal(t, 0, m.Meta().Len())
}

func TestDistributor_Blob(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	adapter, err := transfer.NewBlobDense(&transfer.Config{Compression: "lz4"}, blobs)
	require.NoError(t, err)
	d := NewDistributor(&Config{Backend: proto.BackendBlob}, adapter)

	m := newDense(t, 7, 2)
	require.NoError(t, d.Distribute(ctx, m, []string{"w0", "w1"}))
	require.Len(t, blobs.Keys("w0/"), 1)
	require.Len(t, blobs.Keys("w1/"), 1)
	for _, info := range Placement(m) {
		require.True(t, info.Record.Placed)
		require.Equal(t, transfer.BlobKey(info.Location, m.ID(), info.EntryID), info.Record.Handle)
	}
}

// flakyStore fails every Put under a prefix until healed.
type flakyStore struct {
	*blobstore.MemoryStore

	lock   sync.Mutex
	prefix string
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) heal() {
	s.lock.Lock()
	s.prefix = ""
	s.lock.Unlock()
}

func (s *flakyStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	s.lock.Lock()
	prefix := s.prefix
	s.lock.Unlock()
	if prefix != "" && strings.HasPrefix(key, prefix) {
		return errStoreDown
	}
	return s.MemoryStore.Put(ctx, key, r, size)
}

func TestDistributor_UnlistedUnplacedKeepsStaleRange(t *testing.T) {
	ctx := context.Background()
	blobs := &flakyStore{MemoryStore: blobstore.NewMemoryStore(), prefix: "w2/"}
	adapter, err := transfer.NewBlobDense(&transfer.Config{}, blobs)
	require.NoError(t, err)
	d := NewDistributor(&Config{Backend: proto.BackendBlob}, adapter)

	m := newDense(t, 10, 1)
	err = d.Distribute(ctx, m, []string{"w0", "w1", "w2"})
	require.ErrorIs(t, err, errStoreDown)
	stale := m.Meta().GetByLocation("w2")
	require.False(t, stale.Distributed().IsPlaced())
	require.Equal(t, proto.Range{RowStart: 7, RowLen: 3, ColLen: 1}, stale.Range())

	// w2 leaves the list: its entry is neither repartitioned nor dropped, so
	// the next transfer still ships its old rows, overlapping w1's new range
	blobs.heal()
	require.NoError(t, d.Distribute(ctx, m, []string{"w0", "w1"}))
	require.Equal(t, proto.Range{RowStart: 5, RowLen: 5, ColLen: 1}, m.Meta().GetByLocation("w1").Range())

	stale = m.Meta().GetByLocation("w2")
	require.True(t, stale.Distributed().IsPlaced())
	require.Equal(t, proto.Range{RowStart: 7, RowLen: 3, ColLen: 1}, stale.Range())
	require.Equal(t, uint64(3), stale.Distributed().Record().NumRows)
	require.Len(t, blobs.Keys("w2/"), 1)
	require.Len(t, Placement(m), 3)
}
