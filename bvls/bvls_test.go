// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

import (
	"math"
	"slices"
	"testing"
)

func almostEqual[F Float](a, b, tol F) bool {
	return a == b || abs(a-b) <= tol
}

func almostEqualVec[F Float](a, b []F, tol F) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if !almostEqual(v, b[i], tol) {
			return false
		}
	}
	return true
}

// runBVLS allocates the output and scratch arrays and runs the routine
// with mda = m. The data arrays a and b are destroyed by the call.
func runBVLS[F Float](m, n int, a, b, bnd []F, itmax int, fast bool) (x, w []F, rnorm F, nsetp, iter int, status Status) {
	x = make([]F, n)
	w = make([]F, n)
	z := make([]F, m)
	s := make([]F, n)
	index := make([]int, n)
	rnorm, nsetp, iter, status = BVLS(m, n, a, m, b, bnd, x, w, z, s, index, 0, itmax, fast)
	return
}

func testKernelCase[F Float](t *testing.T, m, n int, a, b, bnd []F, itmax int,
	wantX, wantW []F, wantNorm F, wantFree, wantIter int, wantStatus Status, tol F) {
	t.Helper()
	x, w, rnorm, nsetp, iter, status := runBVLS(m, n, slices.Clone(a), slices.Clone(b), bnd, itmax, false)
	switch {
	case status != wantStatus:
		t.Fatal("kernel status fail:", status)
	case nsetp != wantFree:
		t.Fatal("kernel free count fail:", nsetp)
	case iter != wantIter:
		t.Fatal("kernel iteration count fail:", iter)
	case !almostEqualVec(x, wantX, tol):
		t.Fatal("kernel solution fail:", x)
	case !almostEqualVec(w, wantW, tol):
		t.Fatal("kernel dual fail:", w)
	case !almostEqual(rnorm, wantNorm, tol):
		t.Fatal("kernel residual fail:", rnorm)
	}
}

// Identity matrix, one coefficient inside the box and one blocked at
// its lower bound.
func TestKernelSimple(t *testing.T) {
	testKernelSimple[float32](t, 1e-4)
	testKernelSimple[float64](t, 1e-12)
}

func testKernelSimple[F Float](t *testing.T, tol F) {
	a := []F{1, 0, 0, 1}
	b := []F{5, -3}
	bnd := []F{0, 10, 0, 10}
	testKernelCase(t, 2, 2, a, b, bnd, 0,
		[]F{5, 0}, []F{0, -3}, 3, 1, 1, Solved, tol)
}

// A zero-width bound pair pins its coefficient to the single feasible
// value before the iteration starts.
func TestKernelFixedBound(t *testing.T) {
	testKernelFixedBound[float32](t, 1e-4)
	testKernelFixedBound[float64](t, 1e-12)
}

func testKernelFixedBound[F Float](t *testing.T, tol F) {
	a := []F{1, 0, 0, 1}
	b := []F{5, -3}
	bnd := []F{2, 2, 0, 10}
	testKernelCase(t, 2, 2, a, b, bnd, 0,
		[]F{2, 0}, []F{0, -3}, 4.242640687119285, 0, 0, Solved, tol)
}

// One-sided bound pairs clamp the starting point onto the nearest
// feasible value, and the right-hand side absorbs the nonzero start.
func TestKernelClampStart(t *testing.T) {
	testKernelClampStart[float32](t, 1e-4)
	testKernelClampStart[float64](t, 1e-12)
}

func testKernelClampStart[F Float](t *testing.T, tol F) {
	big := maxFloat[F]()
	a := []F{1, 0, 0, 1}
	b := []F{-5, -3}
	bnd := []F{1, big, -big, -1}
	testKernelCase(t, 2, 2, a, b, bnd, 0,
		[]F{1, -3}, []F{-6, 0}, 6, 1, 1, Solved, tol)
}

// With lower bounds of zero and no upper bounds the routine reproduces
// the classic NNLS behavior: the worse column stays at zero with a
// negative dual coefficient.
func TestKernelNonNegative(t *testing.T) {
	testKernelNonNegative[float32](t, 1e-4)
	testKernelNonNegative[float64](t, 1e-12)
}

func testKernelNonNegative[F Float](t *testing.T, tol F) {
	big := maxFloat[F]()
	a := []F{1, 2, 3, 3, 2, 1}
	b := []F{-1, 1, 3}
	bnd := []F{0, big, 0, big}
	testKernelCase(t, 3, 2, a, b, bnd, 0,
		[]F{5.0 / 7, 0}, []F{0, -36.0 / 7}, 1.9639610120524646, 1, 1, Solved, tol)
}

// The joint solution of both columns leaves the box, so the iterate
// only moves halfway and the blocked coefficient lands exactly on its
// upper bound, where its dual sign rules out another promotion.
func TestKernelPartialStep(t *testing.T) {
	testKernelPartialStep[float32](t, 1e-4)
	testKernelPartialStep[float64](t, 1e-12)
}

func testKernelPartialStep[F Float](t *testing.T, tol F) {
	a := []F{1, 0, 1, 1}
	b := []F{3, 2}
	bnd := []F{0, 10, 0, 1}
	testKernelCase(t, 2, 2, a, b, bnd, 0,
		[]F{2, 1}, []F{0, 1}, 1, 1, 3, Solved, tol)
}

// Demoting the first of two triangularized columns forces the plane
// rotation downdate. The case pins the exact outputs of the current
// feasibility sweep, including its boundary comparison behavior.
func TestKernelDowndate(t *testing.T) {
	testKernelDowndate[float32](t, 2e-4)
	testKernelDowndate[float64](t, 1e-12)
}

func testKernelDowndate[F Float](t *testing.T, tol F) {
	a := []F{1, 0, 1, 0, 1, -1}
	b := []F{2.5, 2, 3}
	bnd := []F{0, 3, 0, 10}
	testKernelCase(t, 3, 2, a, b, bnd, 0,
		[]F{3, 1}, []F{0.5, 0}, 1.5, 1, 3, Solved, tol)
}

// A cap of one feasibility pass stops the fit early with the current
// triangular solution copied out as a best-effort iterate.
func TestKernelMaxIter(t *testing.T) {
	testKernelMaxIter[float32](t, 1e-4)
	testKernelMaxIter[float64](t, 1e-12)
}

func testKernelMaxIter[F Float](t *testing.T, tol F) {
	a := []F{1, 0, 1, 0, 1, 1}
	b := []F{1, 1, 1}
	bnd := []F{0, 10, 0, 10}

	testKernelCase(t, 3, 2, a, b, bnd, 1,
		[]F{2.0 / 3, 2.0 / 3}, []F{0, 0}, 0.5773502691896257, 2, 2, OverMaxIter, tol)

	// The same problem converges under the default cap.
	testKernelCase(t, 3, 2, a, b, bnd, 0,
		[]F{2.0 / 3, 2.0 / 3}, []F{0, 0}, 0.5773502691896257, 2, 2, Solved, tol)
}

func TestKernelStatus(t *testing.T) {
	testKernelStatus[float32](t)
	testKernelStatus[float64](t)
}

func testKernelStatus[F Float](t *testing.T) {

	a := []F{1, 0, 0, 1}
	b := []F{5, -3}
	bnd := []F{0, 10, 0, 10}

	if _, _, _, _, _, status := runBVLS(1, 2, a, b[:1], bnd, 0, false); status != InvalidDim {
		t.Fatal("kernel dim check fail:", status)
	}

	x, w := make([]F, 2), make([]F, 2)
	z, s, index := make([]F, 2), make([]F, 2), make([]int, 2)
	if _, _, _, status := BVLS(2, 2, a, 1, b, bnd, x, w, z, s, index, 0, 0, false); status != ShapeMismatch {
		t.Fatal("kernel mda check fail:", status)
	}
	if _, _, _, status := BVLS(2, 2, a, 2, b, bnd, x, w, z, s[:1], index, 0, 0, false); status != ShapeMismatch {
		t.Fatal("kernel scratch check fail:", status)
	}

	// Inverted and NaN pairs are rejected before any data is modified,
	// so the reported residual is the norm of the untouched b.
	for _, bad := range [][]F{
		{0, 10, 5, 4},
		{0, 10, F(math.NaN()), 10},
		{0, 10, 0, F(math.NaN())},
	} {
		x, w, rnorm, nsetp, _, status := runBVLS(2, 2, slices.Clone(a), slices.Clone(b), bad, 0, false)
		switch {
		case status != InconsistentBounds:
			t.Fatal("kernel bound check fail:", status)
		case nsetp != 0 || x[0] != 0 || x[1] != 0 || w[0] != 0 || w[1] != 0:
			t.Fatal("kernel outputs not clean:", x, w)
		case !almostEqual(rnorm, nrm2(b, false), 0):
			t.Fatal("kernel residual fail:", rnorm)
		}
	}
}

// Origin: https://www.netlib.org/lawson-hanson/all (PROG1 data generator)
func TestKernelRandom(t *testing.T) {
	testKernelRandom[float32](t, 1e-3)
	testKernelRandom[float64](t, 1e-10)
}

func testKernelRandom[F Float](t *testing.T, tol F) {

	var gen randGen
	big := maxFloat[F]()

	for _, fast := range []bool{false, true} {
		for _, anoise := range []float64{zero, 0.0001} {
			gen.next(-one)

			for m := 2; m <= 7; m++ {
				for n := 2; n <= 5; n++ {

					a := make([]F, m*n)
					for j := 0; j < n; j++ {
						for i := 0; i < m; i++ {
							a[i+j*m] = F(gen.next(anoise)) / 500
						}
					}
					b := make([]F, m)
					for i := range b {
						b[i] = F(gen.next(anoise)) / 500
					}
					bnd := make([]F, 2*n)
					for k := 0; k < n; k++ {
						lo := F(gen.next(anoise)) / 500
						up := F(gen.next(anoise)) / 500
						if lo > up {
							lo, up = up, lo
						}
						switch k % 3 {
						case 0:
							bnd[2*k], bnd[2*k+1] = lo, up
						case 1:
							bnd[2*k], bnd[2*k+1] = -big, up
						case 2:
							bnd[2*k], bnd[2*k+1] = lo, big
						}
					}

					x, w, _, _, _, status := runBVLS(m, n, slices.Clone(a), slices.Clone(b), bnd, 0, fast)
					if status != Solved && status != OverMaxIter {
						t.Fatal("random case status fail:", m, n, status)
					}
					if status != Solved {
						continue
					}

					// Every solution stays inside the box, and a coefficient
					// resting on a bound carries a dual sign pointing out of
					// the feasible interval.
					for k := 0; k < n; k++ {
						lo, up := bnd[2*k], bnd[2*k+1]
						switch {
						case x[k] < lo || x[k] > up:
							t.Fatal("random case bound violation:", m, n, k, x[k])
						case x[k] <= lo && w[k] > tol:
							t.Fatal("random case dual sign at lower bound:", m, n, k, w[k])
						case x[k] >= up && w[k] < -tol:
							t.Fatal("random case dual sign at upper bound:", m, n, k, w[k])
						}
					}

					// The routine is deterministic: a second run over the same
					// data reproduces the first bit for bit.
					x2, w2, _, _, _, _ := runBVLS(m, n, slices.Clone(a), slices.Clone(b), bnd, 0, fast)
					if !slices.Equal(x, x2) || !slices.Equal(w, w2) {
						t.Fatal("random case not deterministic:", m, n)
					}
				}
			}
		}
	}
}

// generate a random value with noise added.
type randGen struct {
	i, j int
	aj   float64
}

// generate next random value with noise added.
// anoise determines the level of "noise" to be added to the data.
func (g *randGen) next(anoise float64) float64 {

	const (
		mi = 891
		mj = 457
	)

	if anoise < zero {
		g.i = 5
		g.j = 7
		g.aj = zero
		return zero
	}

	// The sequence of values of J is bounded between 1 and 996.
	// If initial j = 1,2,3,4,5,6,7,8, or 9, the period is 332.
	if anoise > zero {
		g.j = g.j * mj
		g.j = g.j - 997*(g.j/997)
		g.aj = float64(g.j - 498)
	}

	// The sequence of values of I is bounded between 1 and 999.
	// If initial i = 1,2,3,6,7, or 9, the period will be 50.
	// If initial i = 4 or 8, the period will be 25.
	// If initial i = 5, the period will be 10.
	g.i = g.i * mi
	g.i = g.i - 1000*(g.i/1000)
	return float64(g.i-500) + g.aj*anoise
}
