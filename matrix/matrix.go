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

package matrix

import (
	"github.com/cubefs/distmatrix/proto"
	"github.com/cubefs/distmatrix/util"
)

// Matrix is a numeric matrix held by the coordinator together with the
// metadata describing where its partitions live.
type Matrix struct {
	id   proto.MatrixID
	data Data
	meta *Registry
}

func New(data Data) *Matrix {
	return &Matrix{
		id:   util.NewID(),
		data: data,
		meta: NewRegistry(),
	}
}

func (m *Matrix) ID() proto.MatrixID {
	return m.id
}

func (m *Matrix) NumRows() uint64 {
	return m.data.Rows()
}

func (m *Matrix) NumCols() uint64 {
	return m.data.Cols()
}

func (m *Matrix) Data() Data {
	return m.data
}

func (m *Matrix) Meta() *Registry {
	return m.meta
}

// Close tears the matrix down together with all of its metadata entries.
func (m *Matrix) Close() {
	m.meta.Close()
}
