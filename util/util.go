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
	"strings"

	"github.com/cubefs/cubefs/blobstore/util/bytespool"
	"github.com/google/uuid"
)

const DefaultWorkerDelimiter = ","

// NewID returns a random identity for matrices and stored blocks.
func NewID() string {
	return uuid.NewString()
}

// ParseWorkers splits a delimited worker address list, e.g. "a:1,b:2".
// Blank items are dropped so a trailing delimiter is harmless.
func ParseWorkers(s, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultWorkerDelimiter
	}
	var workers []string
	for _, item := range strings.Split(s, delimiter) {
		if item = strings.TrimSpace(item); item != "" {
			workers = append(workers, item)
		}
	}
	return workers
}

func GetBuffer(size int) []byte {
	return bytespool.Alloc(size)
}

func PutBuffer(b []byte) {
	bytespool.Free(b)
}
