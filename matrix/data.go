package matrix

import (
	"math/bits"

	apierrors "github.com/cubefs/distmatrix/errors"
)

// Kind names a concrete matrix representation.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDenseFloat64
	KindCSRFloat64
)

func (k Kind) String() string {
	switch k {
	case KindDenseFloat64:
		return "DenseMatrix<double>"
	case KindCSRFloat64:
		return "CSRMatrix<double>"
	default:
		return "unknown"
	}
}

// Data is the closed set of representations a Matrix can hold.
// Adapters switch over the concrete types and reject the ones they cannot serialize.
type Data interface {
	Kind() Kind
	Rows() uint64
	Cols() uint64

	isData()
}

// DenseFloat64 is a row-major dense matrix of float64.
type DenseFloat64 struct {
	rows   uint64
	cols   uint64
	values []float64
}

// NewDenseFloat64 wraps values, which must hold rows*cols elements in row-major order.
func NewDenseFloat64(rows, cols uint64, values []float64) (*DenseFloat64, error) {
	hi, n := bits.Mul64(rows, cols)
	if hi != 0 || uint64(len(values)) != n {
		return nil, apierrors.ErrInvalidData
	}
	return &DenseFloat64{rows: rows, cols: cols, values: values}, nil
}

func (d *DenseFloat64) Kind() Kind   { return KindDenseFloat64 }
func (d *DenseFloat64) Rows() uint64 { return d.rows }
func (d *DenseFloat64) Cols() uint64 { return d.cols }
func (d *DenseFloat64) isData()      {}

func (d *DenseFloat64) Get(row, col uint64) float64 {
	return d.values[row*d.cols+col]
}

// Slice copies rows [rowStart, rowEnd) and columns [colStart, colEnd) into a
// new row-major slice.
func (d *DenseFloat64) Slice(rowStart, rowEnd, colStart, colEnd uint64) ([]float64, error) {
	if rowStart > rowEnd || colStart > colEnd || rowEnd > d.rows || colEnd > d.cols {
		return nil, apierrors.ErrInvalidRange
	}
	width := colEnd - colStart
	out := make([]float64, 0, (rowEnd-rowStart)*width)
	for r := rowStart; r < rowEnd; r++ {
		base := r * d.cols
		out = append(out, d.values[base+colStart:base+colEnd]...)
	}
	return out, nil
}

// CSRFloat64 is a compressed sparse row matrix of float64.
type CSRFloat64 struct {
	rows       uint64
	cols       uint64
	rowOffsets []uint64
	colIdxs    []uint64
	values     []float64
}

func NewCSRFloat64(rows, cols uint64, rowOffsets, colIdxs []uint64, values []float64) (*CSRFloat64, error) {
	if len(rowOffsets) == 0 || uint64(len(rowOffsets)) != rows+1 || len(colIdxs) != len(values) {
		return nil, apierrors.ErrInvalidData
	}
	// offsets start at 0, never decrease and end at the value count
	if rowOffsets[0] != 0 || rowOffsets[rows] != uint64(len(values)) {
		return nil, apierrors.ErrInvalidData
	}
	for i := uint64(1); i <= rows; i++ {
		if rowOffsets[i] < rowOffsets[i-1] {
			return nil, apierrors.ErrInvalidData
		}
	}
	for _, c := range colIdxs {
		if c >= cols {
			return nil, apierrors.ErrInvalidData
		}
	}
	return &CSRFloat64{rows: rows, cols: cols, rowOffsets: rowOffsets, colIdxs: colIdxs, values: values}, nil
}

func (c *CSRFloat64) Kind() Kind   { return KindCSRFloat64 }
func (c *CSRFloat64) Rows() uint64 { return c.rows }
func (c *CSRFloat64) Cols() uint64 { return c.cols }
func (c *CSRFloat64) isData()      {}

func (c *CSRFloat64) NumNonZeros() int {
	return len(c.values)
}

func (c *CSRFloat64) Get(row, col uint64) float64 {
	for i := c.rowOffsets[row]; i < c.rowOffsets[row+1]; i++ {
		if c.colIdxs[i] == col {
			return c.values[i]
		}
	}
	return 0
}
