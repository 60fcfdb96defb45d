// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

import (
	"gonum.org/v1/gonum/mat"
)

// DenseProblem builds a float64 problem from gonum dense views,
// flattening the row-major matrix into the column-major layout of
// the solver. The data is copied, the views stay untouched.
//
// Dimension or bound errors surface when the problem is handed to New.
func DenseProblem(a mat.Matrix, b mat.Vector, bounds []Bound[float64]) *Problem[float64] {
	m, n := a.Dims()

	av := make([]float64, m*n)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			av[i+j*m] = a.At(i, j)
		}
	}

	bv := make([]float64, b.Len())
	for i := range bv {
		bv[i] = b.AtVec(i)
	}

	return &Problem[float64]{
		M: m, N: n,
		A:      av,
		B:      bv,
		Bounds: bounds,
	}
}
