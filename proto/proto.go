package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	apierrors "github.com/cubefs/distmatrix/errors"
)

const (
	ReqIdKey   = "req-id"
	EntryIdKey = "entry-id"

	// DefaultPartitionIndex is used while every worker holds a single partition.
	DefaultPartitionIndex = uint64(0)
)

type (
	EntryID  = uint64
	MatrixID = string
)

// StoreRequest carries one serialized block to a worker.
// Data holds NumRows*NumCols little endian float64 values in row-major order,
// compressed with Compression.
type StoreRequest struct {
	MatrixID    MatrixID
	EntryID     EntryID
	NumRows     uint64
	NumCols     uint64
	Compression Compression
	Data        []byte
}

// StoreResponse is returned by a worker once the block is stored.
type StoreResponse struct {
	Handle  string
	NumRows uint64
	NumCols uint64
}

const (
	storeReqMatrixID    protowire.Number = 1
	storeReqEntryID     protowire.Number = 2
	storeReqNumRows     protowire.Number = 3
	storeReqNumCols     protowire.Number = 4
	storeReqCompression protowire.Number = 5
	storeReqData        protowire.Number = 6

	storeRespHandle  protowire.Number = 1
	storeRespNumRows protowire.Number = 2
	storeRespNumCols protowire.Number = 3
)

func (m *StoreRequest) Size() int {
	n := 0
	if m.MatrixID != "" {
		n += protowire.SizeTag(storeReqMatrixID) + protowire.SizeBytes(len(m.MatrixID))
	}
	n += protowire.SizeTag(storeReqEntryID) + protowire.SizeVarint(m.EntryID)
	n += protowire.SizeTag(storeReqNumRows) + protowire.SizeVarint(m.NumRows)
	n += protowire.SizeTag(storeReqNumCols) + protowire.SizeVarint(m.NumCols)
	n += protowire.SizeTag(storeReqCompression) + protowire.SizeVarint(uint64(m.Compression))
	if len(m.Data) > 0 {
		n += protowire.SizeTag(storeReqData) + protowire.SizeBytes(len(m.Data))
	}
	return n
}

func (m *StoreRequest) Marshal() ([]byte, error) {
	b := make([]byte, 0, m.Size())
	if m.MatrixID != "" {
		b = protowire.AppendTag(b, storeReqMatrixID, protowire.BytesType)
		b = protowire.AppendString(b, m.MatrixID)
	}
	b = protowire.AppendTag(b, storeReqEntryID, protowire.VarintType)
	b = protowire.AppendVarint(b, m.EntryID)
	b = protowire.AppendTag(b, storeReqNumRows, protowire.VarintType)
	b = protowire.AppendVarint(b, m.NumRows)
	b = protowire.AppendTag(b, storeReqNumCols, protowire.VarintType)
	b = protowire.AppendVarint(b, m.NumCols)
	b = protowire.AppendTag(b, storeReqCompression, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Compression))
	if len(m.Data) > 0 {
		b = protowire.AppendTag(b, storeReqData, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Data)
	}
	return b, nil
}

func parseError(n int) error {
	return fmt.Errorf("%w: %s", apierrors.ErrInvalidWireMessage, protowire.ParseError(n))
}

func (m *StoreRequest) Unmarshal(b []byte) error {
	*m = StoreRequest{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(n)
		}
		b = b[n:]

		switch {
		case num == storeReqMatrixID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return parseError(n)
			}
			m.MatrixID = v
			b = b[n:]
		case num == storeReqData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return parseError(n)
			}
			m.Data = append([]byte(nil), v...)
			b = b[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseError(n)
			}
			switch num {
			case storeReqEntryID:
				m.EntryID = v
			case storeReqNumRows:
				m.NumRows = v
			case storeReqNumCols:
				m.NumCols = v
			case storeReqCompression:
				m.Compression = Compression(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return parseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func (m *StoreResponse) Marshal() ([]byte, error) {
	var b []byte
	if m.Handle != "" {
		b = protowire.AppendTag(b, storeRespHandle, protowire.BytesType)
		b = protowire.AppendString(b, m.Handle)
	}
	b = protowire.AppendTag(b, storeRespNumRows, protowire.VarintType)
	b = protowire.AppendVarint(b, m.NumRows)
	b = protowire.AppendTag(b, storeRespNumCols, protowire.VarintType)
	b = protowire.AppendVarint(b, m.NumCols)
	return b, nil
}

func (m *StoreResponse) Unmarshal(b []byte) error {
	*m = StoreResponse{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(n)
		}
		b = b[n:]

		switch {
		case num == storeRespHandle && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return parseError(n)
			}
			m.Handle = v
			b = b[n:]
		case num == storeRespNumRows && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseError(n)
			}
			m.NumRows = v
			b = b[n:]
		case num == storeRespNumCols && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return parseError(n)
			}
			m.NumCols = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return parseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func (m *StoreRequest) Validate() error {
	if m.Compression > CompressionZSTD {
		return apierrors.ErrUnknownCompression
	}
	if m.NumRows*m.NumCols > 0 && len(m.Data) == 0 {
		return apierrors.ErrInvalidData
	}
	return nil
}
