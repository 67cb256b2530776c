package transfer

import (
	"bytes"
	"context"
	"path"
	"strconv"

	"github.com/cubefs/distmatrix/blobstore"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/proto"
	"github.com/cubefs/distmatrix/util/limiter"
)

// BlobDense writes DenseFloat64 partitions into an object store. The worker
// address names the key prefix the worker reads its partitions from, the
// object holds the whole encoded store request so it is self describing.
type BlobDense struct {
	*denseTransfer

	blobs   blobstore.BlobStore
	limiter limiter.Limiter
}

func NewBlobDense(cfg *Config, blobs blobstore.BlobStore) (*BlobDense, error) {
	a := &BlobDense{
		blobs:   blobs,
		limiter: limiter.NewLimiter(cfg.Limit),
	}
	dt, err := newDenseTransfer(proto.BackendBlob, cfg, a.storeBlock)
	if err != nil {
		return nil, err
	}
	a.denseTransfer = dt
	return a, nil
}

func (a *BlobDense) Backend() proto.Backend {
	return proto.BackendBlob
}

func (a *BlobDense) Transfer(ctx context.Context, m *matrix.Matrix) error {
	return a.transfer(ctx, m)
}

// BlobKey is where the partition of an entry is stored for a worker.
func BlobKey(location string, id proto.MatrixID, entryID proto.EntryID) string {
	return path.Join(location, id, strconv.FormatUint(entryID, 10))
}

func (a *BlobDense) storeBlock(ctx context.Context, location string, req *proto.StoreRequest) (*proto.StoreResponse, error) {
	data, err := req.Marshal()
	if err != nil {
		return nil, err
	}
	key := BlobKey(location, req.MatrixID, req.EntryID)
	r := a.limiter.Reader(ctx, bytes.NewReader(data))
	if err = a.blobs.Put(ctx, key, r, int64(len(data))); err != nil {
		return nil, err
	}
	return &proto.StoreResponse{Handle: key, NumRows: req.NumRows, NumCols: req.NumCols}, nil
}
