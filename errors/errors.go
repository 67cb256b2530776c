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

package errors

import "errors"

var (
	ErrNilMatrix       = errors.New("matrix is nil")
	ErrNoWorkers       = errors.New("worker address list is empty")
	ErrDuplicateWorker = errors.New("worker address listed more than once")

	ErrEntryNotFound           = errors.New("metadata entry not found")
	ErrLocationAlreadyAssigned = errors.New("worker address already has a metadata entry")
	ErrInvalidRange            = errors.New("range exceeds matrix bounds")
	ErrMatrixClosed            = errors.New("matrix is closed")

	ErrUnsupportedRepresentation = errors.New("matrix representation not supported by backend")
	ErrUnknownBackend            = errors.New("unknown distribution backend")
	ErrTransferFailed            = errors.New("partition transfer failed")

	ErrUnknownCompression = errors.New("unknown block compression")
	ErrInvalidData        = errors.New("invalid data")
	ErrInvalidWireMessage = errors.New("invalid wire message")
)
