// Package confusion - Ground truth x prediction pixel count histograms.
package confusion

import (
	"gonum.org/v1/gonum/mat"
)

// Matrix is a square confusion matrix indexed by label id. Cell (g, p)
// counts pixels whose ground truth is g and prediction is p.
//
// Counts are uint64 so that image-scale accumulations cannot overflow. A
// Matrix only grows; it is owned by a single goroutine at a time.
type Matrix struct {
	size int
	data []uint64
}

// New returns a zero-filled (maxID+1) x (maxID+1) matrix.
//
// Arguments:
//   - maxID: The largest label id that can be counted.
//
// Returns:
//   - *Matrix: The empty matrix.
func New(maxID int) *Matrix {
	size := maxID + 1
	if size < 0 {
		size = 0
	}
	return &Matrix{size: size, data: make([]uint64, size*size)}
}

// Size returns the number of rows (and columns).
func (m *Matrix) Size() int {
	return m.size
}

// At returns the count of cell (g, p).
func (m *Matrix) At(g, p int) uint64 {
	return m.data[g*m.size+p]
}

// Inc adds n to cell (g, p).
func (m *Matrix) Inc(g, p int, n uint64) {
	m.data[g*m.size+p] += n
}

// Sum returns the total number of counted pixels.
func (m *Matrix) Sum() uint64 {
	var total uint64
	for _, v := range m.data {
		total += v
	}
	return total
}

// RowSum returns the number of pixels whose ground truth is g.
func (m *Matrix) RowSum(g int) uint64 {
	var total uint64
	for _, v := range m.data[g*m.size : (g+1)*m.size] {
		total += v
	}
	return total
}

// BlockSum sums the cells whose row is in rows and whose column is in cols.
func (m *Matrix) BlockSum(rows, cols []int) uint64 {
	var total uint64
	for _, g := range rows {
		row := m.data[g*m.size : (g+1)*m.size]
		for _, p := range cols {
			total += row[p]
		}
	}
	return total
}

// Add merges other into m by element-wise addition.
//
// Returns:
//   - bool: false, leaving m untouched, when the sizes differ.
func (m *Matrix) Add(other *Matrix) bool {
	if other.size != m.size {
		return false
	}
	for i, v := range other.data {
		m.data[i] += v
	}
	return true
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{size: m.size, data: make([]uint64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// Equal reports whether both matrices have the same size and counts.
func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil || m.size != other.size {
		return false
	}
	for i, v := range m.data {
		if other.data[i] != v {
			return false
		}
	}
	return true
}

// Rows returns the counts as a slice of rows, for export.
func (m *Matrix) Rows() [][]uint64 {
	rows := make([][]uint64, m.size)
	for g := range rows {
		rows[g] = make([]uint64, m.size)
		copy(rows[g], m.data[g*m.size:(g+1)*m.size])
	}
	return rows
}

// Normalized returns the row-normalized matrix, each row divided by its sum.
// Rows without ground truth pixels are left at zero and reported in empty.
func (m *Matrix) Normalized() (normalized *mat.Dense, empty []bool) {
	empty = make([]bool, m.size)
	if m.size == 0 {
		return nil, empty
	}

	normalized = mat.NewDense(m.size, m.size, nil)
	for g := 0; g < m.size; g++ {
		rowSum := m.RowSum(g)
		if rowSum == 0 {
			empty[g] = true
			continue
		}
		for p := 0; p < m.size; p++ {
			normalized.Set(g, p, float64(m.At(g, p))/float64(rowSum))
		}
	}
	return normalized, empty
}
