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

package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	id := NewID()
	require.NotEqual(t, "", id)
	require.NotEqual(t, id, NewID())
}

func TestParseWorkers(t *testing.T) {
	require.Equal(t, []string{"w1:50000", "w2:50000"}, ParseWorkers("w1:50000,w2:50000", ""))
	require.Equal(t, []string{"w1", "w2"}, ParseWorkers(" w1 ; w2; ", ";"))
	require.Equal(t, []string{"w1"}, ParseWorkers("w1", ","))
	require.Nil(t, ParseWorkers("", ","))
}

func TestBuffer(t *testing.T) {
	b := GetBuffer(1024)
	require.Len(t, b, 1024)
	PutBuffer(b)
}
