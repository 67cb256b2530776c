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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/distmatrix/blobstore"
	"github.com/cubefs/distmatrix/client"
	"github.com/cubefs/distmatrix/coordinator"
	"github.com/cubefs/distmatrix/coordinator/transfer"
	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/matrix"
	"github.com/cubefs/distmatrix/metrics"
	"github.com/cubefs/distmatrix/proto"
	"github.com/cubefs/distmatrix/util"
)

const workersEnv = "DISTRIBUTED_WORKERS"

// Config distmatrix config
type Config struct {
	coordinator.Config

	Workers  []string               `json:"workers"`
	Rows     uint64                 `json:"rows"`
	Cols     uint64                 `json:"cols"`
	Seed     int64                  `json:"seed"`
	Transfer transfer.Config        `json:"transfer"`
	Worker   client.WorkerConfig    `json:"worker"`
	Minio    *blobstore.MinioConfig `json:"minio"`

	// HttpBindAddr serves metrics and the log level handler, the process
	// then stays up until it is signalled.
	HttpBindAddr  string    `json:"http_bind_addr"`
	MaxProcessors int       `json:"max_processors"`
	LogLevel      log.Level `json:"log_level"`
}

func main() {
	config.Init("f", "", "distmatrix.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}
	initConfig(cfg)
	log.SetOutputLevel(cfg.LogLevel)

	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	span, ctx := trace.StartSpanFromContext(ctx, "distmatrix")

	var httpServer *http.Server
	if cfg.HttpBindAddr != "" {
		httpServer = serveHttp(cfg.HttpBindAddr)
	}

	adapter, closer, err := newAdapter(cfg)
	if err != nil {
		span.Errorf("build adapter failed: %s", errors.Detail(err))
		return err
	}
	defer closer()

	m := matrix.New(randomDense(cfg.Rows, cfg.Cols, cfg.Seed))
	defer m.Close()

	d := coordinator.NewDistributor(&cfg.Config, adapter)
	if err = d.Distribute(ctx, m, cfg.Workers); err != nil {
		span.Errorf("distribute matrix[%s] failed: %s", m.ID(), errors.Detail(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(struct {
		Matrix     proto.MatrixID              `json:"matrix"`
		Rows       uint64                      `json:"rows"`
		Cols       uint64                      `json:"cols"`
		Partitions []coordinator.PartitionInfo `json:"partitions"`
	}{m.ID(), m.NumRows(), m.NumCols(), coordinator.Placement(m)}); encErr != nil {
		span.Errorf("encode placement failed: %s", encErr)
	}

	if httpServer != nil {
		<-ctx.Done()
		httpServer.Close()
	}
	return err
}

func initConfig(cfg *Config) {
	if len(cfg.Workers) == 0 {
		cfg.Workers = util.ParseWorkers(os.Getenv(workersEnv), ",")
	}
	if len(cfg.Workers) == 0 {
		log.Fatalf("no workers configured, set workers or %s", workersEnv)
	}
	if cfg.Rows == 0 {
		cfg.Rows = 1024
	}
	if cfg.Cols == 0 {
		cfg.Cols = 16
	}
	if cfg.Backend == "" {
		cfg.Backend = proto.BackendGRPC
	}
	if cfg.MaxProcessors > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcessors)
	}
}

func newAdapter(cfg *Config) (transfer.Adapter, func(), error) {
	switch cfg.Backend {
	case proto.BackendGRPC:
		mgr := client.NewWorkerClientMgr(&cfg.Worker)
		adapter, err := transfer.NewGRPCDense(&cfg.Transfer, mgr)
		if err != nil {
			mgr.Close()
			return nil, nil, errors.Info(err, "new grpc adapter")
		}
		return adapter, func() { mgr.Close() }, nil
	case proto.BackendBlob:
		var store blobstore.BlobStore = blobstore.NewMemoryStore()
		if cfg.Minio != nil {
			minioStore, err := blobstore.NewMinioStore(cfg.Minio)
			if err != nil {
				return nil, nil, errors.Info(err, "new minio store")
			}
			store = minioStore
		} else {
			log.Warnf("no minio configured, blob backend keeps partitions in memory")
		}
		adapter, err := transfer.NewBlobDense(&cfg.Transfer, store)
		if err != nil {
			return nil, nil, errors.Info(err, "new blob adapter")
		}
		return adapter, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", apierrors.ErrUnknownBackend, cfg.Backend)
	}
}

func randomDense(rows, cols uint64, seed int64) *matrix.DenseFloat64 {
	r := rand.New(rand.NewSource(seed))
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = r.Float64()
	}
	d, err := matrix.NewDenseFloat64(rows, cols, values)
	if err != nil {
		log.Fatalf("build %dx%d matrix failed: %s", rows, cols, err)
	}
	return d
}

func serveHttp(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	logLevelPath, logLevelHandler := log.ChangeDefaultLevelHandler()
	mux.Handle(logLevelPath, logLevelHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server exits: %s", err)
		}
	}()
	return srv
}
