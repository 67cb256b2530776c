package transfer

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/util/taskpool"

	"github.com/cubefs/distmatrix/proto"
)

type storeFunc func(ctx context.Context, location string, req *proto.StoreRequest) (*proto.StoreResponse, error)

type result struct {
	id       proto.EntryID
	location string
	resp     *proto.StoreResponse
	err      error
}

// caller issues store requests without waiting for them and hands the
// completions back in whatever order they arrive.
type caller struct {
	pool     taskpool.TaskPool
	results  chan *result
	inflight map[proto.EntryID]string
}

// newCaller sizes the pool queue and the result channel to capacity so that
// neither submission nor completion ever blocks.
func newCaller(concurrency, capacity int) *caller {
	if concurrency <= 0 || concurrency > capacity {
		concurrency = capacity
	}
	return &caller{
		pool:     taskpool.New(concurrency, capacity),
		results:  make(chan *result, capacity),
		inflight: make(map[proto.EntryID]string, capacity),
	}
}

// asyncStore schedules one store, done runs once the request has finished
// with its payload.
func (c *caller) asyncStore(ctx context.Context, location string, req *proto.StoreRequest, store storeFunc, done func()) {
	c.inflight[req.EntryID] = location
	c.pool.Run(func() {
		resp, err := store(ctx, location, req)
		if done != nil {
			done()
		}
		c.results <- &result{id: req.EntryID, location: location, resp: resp, err: err}
	})
}

func (c *caller) isQueueEmpty() bool {
	return len(c.inflight) == 0
}

// nextResult blocks for the next completion.
func (c *caller) nextResult(ctx context.Context) (*result, error) {
	select {
	case r := <-c.results:
		delete(c.inflight, r.id)
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// pending returns the requests still outstanding.
func (c *caller) pending() map[proto.EntryID]string {
	return c.inflight
}

func (c *caller) close() {
	c.pool.Close()
}
