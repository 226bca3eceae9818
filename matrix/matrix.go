// Copyright 2024 The dstruct Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package matrix implements a dense matrix backed by a single row-major
// slice. Dimension mismatches are programmer errors and panic.
package matrix

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Number is the set of element types a Matrix can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// Matrix is a dense rows x cols matrix stored in row-major order.
type Matrix[T Number] struct {
	values []T
	rows   int
	cols   int
}

// New constructs a zeroed rows x cols matrix.
func New[T Number](rows, cols int) *Matrix[T] {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: invalid dimensions %dx%d", rows, cols))
	}
	return &Matrix[T]{values: make([]T, rows*cols), rows: rows, cols: cols}
}

// NewFromRows constructs a matrix from a slice of equal-length rows.
func NewFromRows[T Number](rows [][]T) *Matrix[T] {
	if len(rows) == 0 {
		return New[T](0, 0)
	}
	m := New[T](len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			panic(fmt.Sprintf("matrix: row %d has %d columns, want %d", i, len(row), m.cols))
		}
		copy(m.Row(i), row)
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix[T]) Cols() int { return m.cols }

// At returns the element at row r, column c.
func (m *Matrix[T]) At(r, c int) T {
	m.checkIndex(r, c)
	return m.values[r*m.cols+c]
}

// Set stores value at row r, column c.
func (m *Matrix[T]) Set(r, c int, value T) {
	m.checkIndex(r, c)
	m.values[r*m.cols+c] = value
}

// Row returns row r as a mutable view into the matrix.
func (m *Matrix[T]) Row(r int) []T {
	if r < 0 || r >= m.rows {
		panic(fmt.Sprintf("matrix: row %d out of range [0,%d)", r, m.rows))
	}
	return m.values[r*m.cols : (r+1)*m.cols]
}

// Add adds other to m element-wise, in place.
func (m *Matrix[T]) Add(other *Matrix[T]) {
	m.checkSameShape(other)
	for i, v := range other.values {
		m.values[i] += v
	}
}

// Sub subtracts other from m element-wise, in place.
func (m *Matrix[T]) Sub(other *Matrix[T]) {
	m.checkSameShape(other)
	for i, v := range other.values {
		m.values[i] -= v
	}
}

// Scale multiplies every element by factor, in place.
func (m *Matrix[T]) Scale(factor T) {
	for i := range m.values {
		m.values[i] *= factor
	}
}

// Mul returns the matrix product m x other as a new matrix. The number
// of columns of m must equal the number of rows of other.
func (m *Matrix[T]) Mul(other *Matrix[T]) *Matrix[T] {
	if m.cols != other.rows {
		panic(fmt.Sprintf("matrix: cannot multiply %dx%d by %dx%d",
			m.rows, m.cols, other.rows, other.cols))
	}
	out := New[T](m.rows, other.cols)
	for i := 0; i < m.rows; i++ {
		for k := 0; k < m.cols; k++ {
			v := m.values[i*m.cols+k]
			if v == 0 {
				continue
			}
			row := other.values[k*other.cols : (k+1)*other.cols]
			outRow := out.values[i*out.cols : (i+1)*out.cols]
			for j, w := range row {
				outRow[j] += v * w
			}
		}
	}
	return out
}

// Transpose returns the transpose of m as a new matrix.
func (m *Matrix[T]) Transpose() *Matrix[T] {
	out := New[T](m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.values[j*out.cols+i] = m.values[i*m.cols+j]
		}
	}
	return out
}

// Clone returns a copy of m with independent backing storage.
func (m *Matrix[T]) Clone() *Matrix[T] {
	out := New[T](m.rows, m.cols)
	copy(out.values, m.values)
	return out
}

// Equal reports whether two matrices have the same shape and elements.
func (m *Matrix[T]) Equal(other *Matrix[T]) bool {
	if m.rows != other.rows || m.cols != other.cols {
		return false
	}
	for i, v := range m.values {
		if other.values[i] != v {
			return false
		}
	}
	return true
}

func (m *Matrix[T]) checkIndex(r, c int) {
	if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
		panic(fmt.Sprintf("matrix: index (%d,%d) out of range %dx%d", r, c, m.rows, m.cols))
	}
}

func (m *Matrix[T]) checkSameShape(other *Matrix[T]) {
	if m.rows != other.rows || m.cols != other.cols {
		panic(fmt.Sprintf("matrix: shape mismatch %dx%d vs %dx%d",
			m.rows, m.cols, other.rows, other.cols))
	}
}
