/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# DistMatrix: coordinator side matrix distribution

## What it does

A coordinator holds a matrix and a list of worker addresses. DistMatrix cuts
the matrix into contiguous row blocks, one per worker, records every block in
the matrix metadata and ships the blocks to their workers. Shipping can be
repeated: only blocks not yet placed are sent again.

## Data Model

* Matrix, a numeric matrix (dense or CSR float64) with an id and a metadata registry.

* Entry, one metadata record: entry id --> allocation, range

* Range, the half-open row and column block an entry covers

* Distributed allocation, worker address + placement record (index, handle, shape, placed)

## Flow

* Partition - rows / workers rows each, the first rows % workers workers take one more

* Transfer - async store per unplaced entry, tagged with the entry id, completions drained in any order

* Distribute - partition then transfer with the adapter of a backend

## Backends

* grpc, the worker Store RPC

* blob, objects under the worker's prefix in MinIO or any S3 compatible store

## Building Blocks

* gRPC
* MinIO
* zstd / lz4
* Prometheus

*/

package distmatrix
