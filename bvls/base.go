// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

import "math"

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
)

// Float is the set of element types the solver operates on.
// The reference arithmetic of this routine is float32.
// Instantiate with float64 when the problem demands higher precision.
type Float interface {
	float32 | float64
}

// Status indicates the solver state on return.
type Status int

const (
	// Solved problem solved successfully.
	Solved Status = iota
	// InvalidDim m or n is below the minimal problem size.
	InvalidDim
	// ShapeMismatch array size or shape violation.
	ShapeMismatch
	// InconsistentBounds some lower bound exceeds its upper bound.
	InconsistentBounds
	// OverMaxIter more than max iterations for solving BVLS.
	OverMaxIter
)

func (s Status) String() string {
	switch s {
	case Solved:
		return "Solved"
	case InvalidDim:
		return "InvalidDim"
	case ShapeMismatch:
		return "ShapeMismatch"
	case InconsistentBounds:
		return "InconsistentBounds"
	case OverMaxIter:
		return "OverMaxIter"
	}
	return "Unknown"
}

// solveTask is the continuation signal passed between solver phases.
type solveTask int

const (
	// taskFound a coefficient was selected to enter set ℙ
	taskFound solveTask = iota
	// taskStall no coefficient in set ℤ passed the candidate tests
	taskStall
	// taskFeasible all coefficients in set ℙ are strictly feasible
	taskFeasible
	// taskOverIter the iteration count exceeded its limit
	taskOverIter
)

// epsilon computes the machine precision of F.
// The identity evaluates negative for float32, hence the sign fix.
func epsilon[F Float]() F {
	e := F(7)/3 - F(4)/3 - 1
	if e < 0 {
		e = -e
	}
	return e
}

// maxFloat returns the largest finite value of F.
// Bounds at or beyond this magnitude designate an unconstrained direction.
func maxFloat[F Float]() (f F) {
	switch p := any(&f).(type) {
	case *float32:
		*p = math.MaxFloat32
	case *float64:
		*p = math.MaxFloat64
	}
	return
}

func abs[F Float](v F) F {
	if v < 0 {
		return -v
	}
	return v
}

func sqrt[F Float](v F) F {
	return F(math.Sqrt(float64(v)))
}

func isNaN[F Float](v F) bool {
	return v != v
}
