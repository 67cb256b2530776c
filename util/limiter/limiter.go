// Copyright 2023 The Cuber Authors.
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

package limiter

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const mb = 1 << 20

type (
	// Limiter throttles the bytes sent to workers.
	Limiter interface {
		WaitN(ctx context.Context, n int) error
		Reader(ctx context.Context, r io.Reader) LimitReader
		SetMBPS(mbps int)
		GetConfig() *LimitConfig
		Status() Status
	}
	LimitReader interface {
		WaitN(n int) error
		io.Reader
	}
	LimitConfig struct {
		// Concurrency bounds the transfers in flight, 0 means one per entry.
		Concurrency int `json:"concurrency"`
		// MBPS bounds the payload bandwidth, 0 means unlimited.
		MBPS int `json:"mbps"`
	}
	Status struct {
		Config  LimitConfig
		Running int
		Wait    int
	}
	// reader limited reader
	reader struct {
		ctx        context.Context
		lim        *limiter
		underlying io.Reader
	}
	noopLimitReader struct {
		underlying io.Reader
	}
	limiter struct {
		config  LimitConfig
		running int32
		rate    atomic.Value // *rate.Limiter
	}
)

func (r *reader) Read(p []byte) (n int, err error) {
	if err = r.lim.WaitN(r.ctx, len(p)); err != nil {
		return 0, err
	}
	n, err = r.underlying.Read(p)
	return
}

func (r *reader) WaitN(n int) error {
	return r.lim.WaitN(r.ctx, n)
}

func (nr *noopLimitReader) Read(p []byte) (n int, err error) {
	return nr.underlying.Read(p)
}

func (nr *noopLimitReader) WaitN(n int) error {
	return nil
}

func NewLimiter(cfg LimitConfig) Limiter {
	lim := &limiter{config: cfg}
	if cfg.MBPS > 0 {
		lim.rate.Store(rate.NewLimiter(rate.Limit(cfg.MBPS*mb), cfg.MBPS*mb))
	}
	return lim
}

func (lim *limiter) rateLimiter() *rate.Limiter {
	r, _ := lim.rate.Load().(*rate.Limiter)
	return r
}

// WaitN blocks until n bytes may be sent. Requests larger than the burst
// are split so a single block never fails the limiter.
func (lim *limiter) WaitN(ctx context.Context, n int) error {
	r := lim.rateLimiter()
	if r == nil {
		return nil
	}

	atomic.AddInt32(&lim.running, 1)
	defer atomic.AddInt32(&lim.running, -1)
	for n > 0 {
		step := n
		if burst := r.Burst(); step > burst {
			step = burst
		}
		if err := r.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func (lim *limiter) Reader(ctx context.Context, r io.Reader) LimitReader {
	if lim.rateLimiter() != nil {
		return &reader{
			ctx:        ctx,
			lim:        lim,
			underlying: r,
		}
	}
	return &noopLimitReader{underlying: r}
}

func (lim *limiter) SetMBPS(mbps int) {
	if r := lim.rateLimiter(); r != nil {
		r.SetLimit(rate.Limit(mbps * mb))
		r.SetBurst(mbps * mb)
	} else {
		lim.rate.Store(rate.NewLimiter(rate.Limit(mbps*mb), mbps*mb))
	}
	lim.config.MBPS = mbps
}

func (lim *limiter) GetConfig() *LimitConfig {
	return &lim.config
}

func (lim *limiter) Status() Status {
	return Status{
		Config:  lim.config,
		Running: int(atomic.LoadInt32(&lim.running)),
		Wait:    rateWait(lim.rateLimiter()),
	}
}

func rateWait(r *rate.Limiter) int {
	if r == nil {
		return 0
	}
	now := time.Now()
	reserve := r.ReserveN(now, int(r.Limit())/2)
	duration := reserve.DelayFrom(now)
	reserve.Cancel()
	return int(duration.Milliseconds())
}
