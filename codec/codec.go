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

// Package codec turns dense float64 blocks into store payloads.
//
// A payload is the row-major little endian encoding of the block, optionally
// compressed. Compressed payloads carry an 8 byte header:
// [uncompressed size uint32][compressed size uint32], a compressed size of 0
// means the block was stored raw because compression did not pay off.
package codec

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	apierrors "github.com/cubefs/distmatrix/errors"
	"github.com/cubefs/distmatrix/proto"
)

const (
	headerSize = 8
	valueSize  = 8
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// EncodedSize is the raw payload size of a block with n values.
func EncodedSize(n int) int {
	return n * valueSize
}

// PutFloat64s writes values into dst, which must hold EncodedSize(len(values)) bytes.
func PutFloat64s(dst []byte, values []float64) {
	for i, v := range values {
		binary.LittleEndian.PutUint64(dst[i*valueSize:], math.Float64bits(v))
	}
}

// Float64s decodes a raw payload.
func Float64s(src []byte) ([]float64, error) {
	if len(src)%valueSize != 0 {
		return nil, apierrors.ErrInvalidData
	}
	values := make([]float64, len(src)/valueSize)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*valueSize:]))
	}
	return values, nil
}

// frame is the header in front of a compressed payload: the raw size,
// then the body size, or 0 when the body is kept raw.
type frame struct {
	rawSize  uint32
	bodySize uint32
}

func (f frame) encode(body []byte) []byte {
	out := make([]byte, headerSize+len(body))
	binary.LittleEndian.PutUint32(out[0:], f.rawSize)
	binary.LittleEndian.PutUint32(out[4:], f.bodySize)
	copy(out[headerSize:], body)
	return out
}

func (f frame) raw() bool {
	return f.bodySize == 0
}

// decodeFrame splits payload into its header and body and checks the body
// length against the header.
func decodeFrame(payload []byte) (frame, []byte, error) {
	if len(payload) < headerSize {
		return frame{}, nil, apierrors.ErrInvalidData
	}
	f := frame{
		rawSize:  binary.LittleEndian.Uint32(payload[0:]),
		bodySize: binary.LittleEndian.Uint32(payload[4:]),
	}
	body := payload[headerSize:]
	expected := f.bodySize
	if f.raw() {
		expected = f.rawSize
	}
	if uint32(len(body)) != expected {
		return frame{}, nil, apierrors.ErrInvalidData
	}
	return f, body, nil
}

// Compress returns the payload for raw. With CompressionNone raw itself is returned.
func Compress(raw []byte, c proto.Compression) ([]byte, error) {
	var (
		compressed []byte
		err        error
	)
	switch c {
	case proto.CompressionNone:
		return raw, nil
	case proto.CompressionLZ4:
		compressed, err = compressLZ4(raw)
	case proto.CompressionZSTD:
		compressed = compressZSTD(raw)
	default:
		return nil, apierrors.ErrUnknownCompression
	}
	if err != nil {
		return nil, err
	}

	f := frame{rawSize: uint32(len(raw))}
	// a block must shrink by a tenth to be worth decompressing
	if len(compressed) == 0 || len(compressed)*10 > len(raw)*9 {
		return f.encode(raw), nil
	}
	f.bodySize = uint32(len(compressed))
	return f.encode(compressed), nil
}

// Decompress is the inverse of Compress.
func Decompress(payload []byte, c proto.Compression) ([]byte, error) {
	switch c {
	case proto.CompressionNone:
		return payload, nil
	case proto.CompressionLZ4, proto.CompressionZSTD:
	default:
		return nil, apierrors.ErrUnknownCompression
	}

	f, body, err := decodeFrame(payload)
	if err != nil {
		return nil, err
	}
	if f.raw() {
		return body, nil
	}

	var raw []byte
	if c == proto.CompressionLZ4 {
		raw = make([]byte, f.rawSize)
		var n int
		if n, err = lz4.UncompressBlock(body, raw); err != nil {
			return nil, err
		}
		raw = raw[:n]
	} else {
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		if raw, err = dec.DecodeAll(body, make([]byte, 0, f.rawSize)); err != nil {
			return nil, err
		}
	}
	if uint32(len(raw)) != f.rawSize {
		return nil, apierrors.ErrInvalidData
	}
	return raw, nil
}

// EncodeBlock is PutFloat64s followed by Compress.
func EncodeBlock(values []float64, c proto.Compression) ([]byte, error) {
	raw := make([]byte, EncodedSize(len(values)))
	PutFloat64s(raw, values)
	return Compress(raw, c)
}

// DecodeBlock is Decompress followed by Float64s.
func DecodeBlock(payload []byte, c proto.Compression) ([]float64, error) {
	raw, err := Decompress(payload, c)
	if err != nil {
		return nil, err
	}
	return Float64s(raw)
}

func compressLZ4(data []byte) ([]byte, error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	// incompressible
	if n == 0 {
		return nil, nil
	}
	return compressed[:n], nil
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil)
}
