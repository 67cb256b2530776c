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

package proto

import "fmt"

// Range is a half-open block of a matrix: rows [RowStart, RowStart+RowLen)
// and columns [ColStart, ColStart+ColLen).
type Range struct {
	RowStart uint64 `json:"row_start"`
	RowLen   uint64 `json:"row_len"`
	ColStart uint64 `json:"col_start"`
	ColLen   uint64 `json:"col_len"`
}

func (r Range) RowEnd() uint64 {
	return r.RowStart + r.RowLen
}

func (r Range) ColEnd() uint64 {
	return r.ColStart + r.ColLen
}

func (r Range) String() string {
	return fmt.Sprintf("rows[%d,%d) cols[%d,%d)", r.RowStart, r.RowEnd(), r.ColStart, r.ColEnd())
}

// DistributedIndex is the logical coordinate of a partition.
type DistributedIndex struct {
	WorkerIndex    uint64 `json:"worker_index"`
	PartitionIndex uint64 `json:"partition_index"`
}

// PlacementRecord describes where, and whether, a partition is stored at its worker.
type PlacementRecord struct {
	Index   DistributedIndex `json:"index"`
	Handle  string           `json:"handle"`
	NumRows uint64           `json:"num_rows"`
	NumCols uint64           `json:"num_cols"`
	Placed  bool             `json:"placed"`
}

type AllocationType uint8

const (
	AllocationTypeUnknown AllocationType = iota
	AllocationTypeLocal
	AllocationTypeDistributed
)

func (t AllocationType) String() string {
	switch t {
	case AllocationTypeLocal:
		return "local"
	case AllocationTypeDistributed:
		return "distributed"
	default:
		return "unknown"
	}
}

// Backend identifies a transfer implementation.
type Backend string

const (
	BackendGRPC Backend = "grpc"
	BackendBlob Backend = "blob"
)

type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionLZ4
	CompressionZSTD
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a config value onto a Compression, "" means none.
func ParseCompression(s string) (Compression, bool) {
	switch s {
	case "", "none":
		return CompressionNone, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZSTD, true
	default:
		return CompressionNone, false
	}
}
