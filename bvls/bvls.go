// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

// BVLS (Bounded-Variable Least-Squares) solve a least-squares problem 𝚖𝚒𝚗 ‖ 𝐀𝐱 - 𝐛 ‖₂
// subject to 𝐥ⱼ ≤ 𝐱ⱼ ≤ 𝐮ⱼ with an active-set method.
//   - 𝐀 is m × n column-major matrix, either m ≥ n or m < n is permitted
//     and there is no restriction on 𝚛𝚊𝚗𝚔(𝐀)
//   - 𝐱 ∈ ℝⁿ with bounds 𝐥ⱼ ≤ 𝐮ⱼ, where 𝐥ⱼ ≤ -𝚖𝚊𝚡(F) or 𝐮ⱼ ≥ +𝚖𝚊𝚡(F)
//     designates that there is no constraint in that direction
//   - 𝐛 ∈ ℝᵐ
//
// The algorithm is a generalization of NNLS: instead of holding variables
// at zero, a constrained variable rests on one of its two bounds, and the
// working partition gains a third member for permanently fixed variables.
//
// There are three index sets ℙ(pivot), ℤ(zero) and 𝔽(fixed):
//   - j ∈ ℙ : variable is strictly interior to its constraint region,
//     its value is given by the triangular system of the current factorization
//   - j ∈ ℤ : variable is held at a bound (or at its clamped initial value)
//     but may still be freed in a later iteration
//   - j ∈ 𝔽 : variable is constrained to the single value 𝐥ⱼ = 𝐮ⱼ
//
// On return index defines the sets as a permutation of {0,···,n-1}:
//   - ℙ = index[:nsetp]
//   - ℤ = index[nsetp:] excluding the 𝔽 tail
//   - 𝔽 = the trailing entries, one per bound pair with 𝐥ⱼ = 𝐮ⱼ
//
// Each outer iteration applies one more Householder transformation Q to 𝐀
// and 𝐛, extending the factorization Q𝐀ₖ = [ℝₖᵀ:O]ᵀ over the columns of ℙ,
// and solves the triangular system for a new candidate solution of set ℙ.
//
// The candidate to free is chosen through the dual n-vector 𝐰 = 𝐀ᵀ(𝐛 - 𝐀𝐱)
// (negative gradient) computed over the untriangularized rows:
//   - a variable at its lower bound may only move up, requiring 𝐰ⱼ > 0
//   - a variable at its upper bound may only move down, requiring 𝐰ⱼ < 0
//   - a variable strictly inside its bounds is always eligible
//
// When no candidate remains, the Kuhn-Tucker conditions of the box
// constrained problem hold and the solution is optimal:
//   - 𝐰ⱼ = 0, ∀j ∈ ℙ
//   - 𝐰ⱼ ≤ 0, ∀j ∈ ℤ resting on its lower bound
//   - 𝐰ⱼ ≥ 0, ∀j ∈ ℤ resting on its upper bound
//
// When the new solution of set ℙ leaves the feasible box, the iterate only
// moves toward it by the largest fraction α ∈ (0,1] that keeps every
// variable inside. The first variable hitting a bound is moved back from
// ℙ to ℤ and the factorization is downdated by plane rotations.
//
// On return the arrays a and b contain the products Q𝐀 and Q𝐛 where Q is
// the m × m orthogonal matrix accumulated by the routine, and the norm of
// the residual vector is given by ‖ 𝐛 - 𝐀𝐱 ‖₂ = ‖ (Q𝐛)[nsetp:m] ‖₂.
//
// # References
//
//	C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition, Chapter 23)
//	R.J. Hanson, Fortran 90 code BVLS, April 1995.
func BVLS[F Float](
	m, n int,
	// initially contains the m × n matrix 𝐀 with leading dimension mda ≥ m.
	// on return the array will contain the product matrix Q𝐀 generated implicitly by this routine.
	a []F, mda int,
	// initially contains the m-vector 𝐛.
	// on return the array will contain the product Q𝐛 generated implicitly by this routine.
	b []F,
	// contains the bound pair of 𝐱ⱼ at (bnd[2j], bnd[2j+1]), read-only.
	bnd []F,
	// will contain the solution vector 𝐱 of the primal problem.
	x []F,
	// will contain the dual vector 𝐰 describing the weight of each constraint.
	w []F,
	// arrays of working space: z of size m, s of size n.
	z, s []F, index []int,
	// relative linear dependence tolerance of a candidate column, ≤ 0 selects the machine precision of F.
	eps F,
	// maximum number of iterations, ≤ 0 selects 3n.
	maxIter int,
	// skip the over/underflow guards of the Euclidean norm computation.
	fastNorm bool) (rnorm F, nsetp, iter int, status Status) {

	if m < 2 || n < 2 {
		return zero, 0, 0, InvalidDim
	}
	if mda < m || len(a) < mda*n || len(b) < m || len(bnd) < 2*n ||
		len(x) < n || len(w) < n || len(z) < m || len(s) < n || len(index) < n {
		return zero, 0, 0, ShapeMismatch
	}

	if eps <= 0 {
		eps = epsilon[F]()
	}
	if maxIter <= 0 {
		maxIter = 3 * n
	}

	c := solveCtx[F]{
		m: m, n: n, mda: mda,
		a: a, b: b, bnd: bnd,
		x: x, w: w, z: z, s: s,
		index: index[:n],
		eps:   eps,
		itmax: maxIter,
		fast:  fastNorm,
	}

	vzero(x[:n])
	vzero(w[:n])

	c.initialize()
	c.mainLoop()
	return c.rnorm, c.np, c.iter, c.status
}

// solveCtx carries the whole state of one BVLS call.
type solveCtx[F Float] struct {
	// the problem dimensions and the leading dimension of a.
	m, n, mda int
	// the working arrays handed in by the caller.
	a, b, bnd []F
	x, w, z   []F
	// scratch row for the rotation downdate.
	s []F
	// permutation defining the sets ℙ, ℤ and 𝔽.
	index []int

	// relative linear dependence tolerance.
	eps F
	// iteration limit.
	itmax int
	// norm computation without over/underflow guards.
	fast bool

	// num of elem in set ℙ, also the next pivot row.
	np int
	// inclusive range of set ℤ inside index.
	iz1, iz2 int
	// iteration counter.
	iter int

	// candidate column and its position inside index.
	j, iz int
	// pivot element uₚ of the candidate Householder vector.
	up F
	// candidate is strictly interior to its constraint region.
	free bool
	// candidate passed the diagonal and direction tests.
	find bool

	// interpolation fraction of the partial step.
	alpha F
	// variable leaving set ℙ and its position inside index.
	i, jj int
	// which bound was hit: 1 lower, 2 upper.
	ibound int
	// some coefficient of the new solution left the feasible box.
	hitbnd bool

	rnorm  F
	status Status
}

// initialize rejects inconsistent bound pairs, clamps the starting point
// into the feasible box and splits off the permanently fixed variables.
func (c *solveCtx[F]) initialize() {

	big := maxFloat[F]()

	// Reject inconsistent bounds before any data is modified.
	for j := 0; j < c.n; j++ {
		if lower, upper := c.bnd[2*j], c.bnd[2*j+1]; isNaN(lower) || isNaN(upper) || lower > upper {
			c.status = InconsistentBounds
			return
		}
	}

	// index = ℙ ∪ ℤ ∪ 𝔽 = {0,···,n-1}
	// ℙ = index[:np] defines the subset columns of 𝐀
	// ℤ = index[iz1:iz2+1]
	// 𝔽 = index[iz2+1:]
	for i := range c.index {
		c.index[i] = i
	}
	c.np, c.iz1, c.iz2 = 0, 0, c.n-1

	for iz := c.iz1; iz <= c.iz2; iz++ {
		j := c.index[iz]
		if lower, upper := c.bnd[2*j], c.bnd[2*j+1]; lower <= -big {
			if upper >= big {
				c.x[j] = zero
			} else {
				c.x[j] = min(zero, upper)
			}
		} else if upper >= big {
			c.x[j] = max(zero, lower)
		} else if upper-lower > zero {
			// Set x[j] to 0 if the constraint interval includes 0,
			// and otherwise to the endpoint of the interval closest to 0.
			c.x[j] = max(lower, min(upper, zero))
		} else {
			// Here x[j] is constrained to a single value.
			// Swap it into the 𝔽 tail and revisit the slot.
			c.index[iz] = c.index[c.iz2]
			c.index[c.iz2] = j
			c.iz2--
			iz--
			c.x[j] = lower
			c.w[j] = zero
		}

		// Change 𝐛 to reflect a nonzero starting value for x[j].
		if abs(c.x[j]) > zero {
			axpy(c.m, -c.x[j], c.a[j*c.mda:], c.b)
		}
	}
}

// mainLoop drives the active-set iteration until the Kuhn-Tucker
// conditions hold or an error state is reached.
func (c *solveCtx[F]) mainLoop() {
	for c.status == Solved {
		// Quit if all coefficients are already in the solution,
		// or if m columns of 𝐀 have been triangularized.
		if c.iz1 > c.iz2 || c.np >= c.m {
			break
		}
		if c.selectCoef() == taskStall {
			break
		}
		c.moveToSetP()
		if c.testSetP() == taskOverIter {
			c.status = OverMaxIter
			break
		}
		// All coefficients in set ℙ are strictly feasible. Loop back.
	}
	c.termination()
}

// selectCoef searches through set ℤ for a new coefficient to solve for.
//
// A candidate is either an unconstrained coefficient or else a constrained
// coefficient that has room to move in the direction consistent with the
// sign of its dual vector component. Components of the dual (negative
// gradient) vector 𝐰 are computed as needed.
//
// Each candidate must pass the tests of testCoef before it is accepted.
// The scan stops at the first such coefficient, leaving its column in c.j
// and its position in c.iz.
func (c *solveCtx[F]) selectCoef() solveTask {
	c.find = false
	for iz := c.iz1; iz <= c.iz2; iz++ {
		j := c.index[iz]
		lower, upper := c.bnd[2*j], c.bnd[2*j+1]
		free1 := c.x[j] > lower // x[j] is not at the left end-point
		free2 := c.x[j] < upper // x[j] is not at the right end-point
		c.iz, c.j, c.free = iz, j, free1 && free2

		if c.free {
			c.testCoef()
		} else {
			// Compute dual coefficient w[j] over the untriangularized rows.
			c.w[j] = dot(c.m-c.np, c.a[c.np+j*c.mda:], c.b[c.np:])
			// Can x[j] move in the direction indicated by the sign of w[j]?
			if c.w[j] < zero {
				if free1 {
					c.testCoef()
				}
			} else if c.w[j] > zero {
				if free2 {
					c.testCoef()
				}
			}
		}
		if c.find {
			return taskFound
		}
	}
	return taskStall
}

// testCoef begins the transformation bringing the candidate column into the
// triangle and checks the new diagonal element to avoid near linear dependence.
// For a candidate resting on a bound, the proposed new value must also move
// away from x[j] in the direction indicated by the sign of w[j], which guards
// against promotions driven by round-off error.
//
// Acceptance leaves the constructed Householder vector inside the column and
// the transformed right-hand side inside 𝐳. Rejection restores the column
// and clears the suspect dual coefficient.
func (c *solveCtx[F]) testCoef() {
	j, np := c.j, c.np
	aj := c.a[j*c.mda : j*c.mda+c.m : j*c.mda+c.m]

	asave := aj[np]
	up := htc(aj[np:], c.fast)

	var unorm F
	if np >= 1 {
		unorm = nrm2(aj[:np], c.fast)
	}

	if abs(aj[np]) > c.eps*unorm {
		// Column j is sufficiently independent.
		// Copy 𝐛 into 𝐳 and apply the transformation Q𝐳.
		copy(c.z[:c.m], c.b[:c.m])
		norm := aj[np]
		aj[np] = up
		if abs(norm) > zero {
			hta(aj[np:], c.z[np:c.m], norm, up)
			aj[np] = norm
		}

		// Adjust 𝐳 as though x[j] had been reset to zero.
		if abs(c.x[j]) > zero {
			axpy(np+1, c.x[j], aj, c.z)
		}

		if c.free {
			c.find = true
		} else {
			// Solve for ztest, the proposed new value for x[j].
			ztest := c.z[np] / aj[np]
			c.find = (c.w[j] < zero && ztest < c.x[j]) || (c.w[j] > zero && ztest > c.x[j])
		}
	}

	// If j was not accepted to be moved from set ℤ to set ℙ,
	// restore a[np,j]. Failing these tests may mean the computed
	// sign of w[j] is suspect, so w[j] is cleared as well. This will
	// not affect subsequent computation, but cleans up the 𝐰 array.
	if !c.find {
		aj[np] = asave
		c.w[j] = zero
	} else {
		c.up = up
	}
}

// moveToSetP commits the candidate j = index[iz] selected by selectCoef.
// 𝐳 contains the old 𝐛 adjusted as though x[j] = 0 and the candidate column
// contains the new Householder transformation vector.
func (c *solveCtx[F]) moveToSetP() {
	j, mda := c.j, c.mda

	copy(c.b[:c.m], c.z[:c.m])

	// Move j from set ℤ to set ℙ.
	c.index[c.iz] = c.index[c.iz1]
	c.index[c.iz1] = j
	c.iz1++
	c.np++

	np := c.np
	aj := c.a[j*mda : j*mda+c.m : j*mda+c.m]

	// Apply the Householder transformation to the columns still in set ℤ.
	// The following loop can be null or not required.
	norm := aj[np-1]
	aj[np-1] = c.up
	if abs(norm) > zero {
		for jz := c.iz1; jz <= c.iz2; jz++ {
			jj := c.index[jz]
			hta(aj[np-1:], c.a[np-1+jj*mda:c.m+jj*mda], norm, c.up)
		}
		aj[np-1] = norm
	}

	// Zero the sub-diagonal elements in column j.
	// The following loop can be null.
	if np < c.m {
		vzero(aj[np:])
	}
	// Set w[j] = 0 for j ∈ ℙ.
	c.w[j] = zero

	c.solveTriangle()
}

// solveTriangle solves the triangular system of the current set ℙ and
// stores the solution temporarily in 𝐳.
func (c *solveCtx[F]) solveTriangle() {
	mda := c.mda
	for ip, jj := c.np-1, -1; ip >= 0; ip-- {
		if jj >= 0 {
			axpy(ip+1, -c.z[ip+1], c.a[jj*mda:], c.z)
		}
		jj = c.index[ip]
		c.z[ip] /= c.a[ip+jj*mda]
	}
}

// testSetP interpolates the iterate toward the new solution of set ℙ held
// in 𝐳 until every coefficient is strictly feasible, demoting each variable
// that hits a bound back to set ℤ. The exit value of 𝐳 is copied into 𝐱
// for the members of ℙ.
func (c *solveCtx[F]) testSetP() (task solveTask) {
	task = taskFeasible
loop:
	for {
		// The solution obtained by solving the current set ℙ is in 𝐳.
		if c.iter++; c.iter > c.itmax {
			task = taskOverIter
			break
		}

		if c.checkFeasible(); !c.hitbnd {
			break
		}

		// Here alpha will be between 0 and 1 for interpolation
		// between the old 𝐱 and the new 𝐳.
		for ip, l := range c.index[:c.np] {
			c.x[l] += c.alpha * (c.z[ip] - c.x[l])
		}
		c.i = c.index[c.jj]

		// The exit test is done at the end, so the loop always runs at least once.
		for {
			c.moveToSetZ()
			if c.np <= 0 {
				break loop
			}

			// See if the remaining coefficients in set ℙ are feasible. They should
			// be because of the way alpha was determined. If any are infeasible
			// it is due to round-off error. Any that are on or beyond a boundary
			// will be set to the boundary value and moved from set ℙ to set ℤ.
			c.ibound = 0
			for jp, l := range c.index[:c.np] {
				if c.x[l] <= c.bnd[2*l] {
					c.ibound, c.jj, c.i = 1, jp, l
					break
				} else if c.x[l] >= c.bnd[2*l+1] {
					c.ibound, c.jj, c.i = 2, jp, l
					break
				}
			}
			if c.ibound <= 0 {
				break
			}
		}

		// Copy 𝐛 into 𝐳. Then solve again and loop back.
		copy(c.z[:c.m], c.b[:c.m])
		c.solveTriangle()
	}

	// The following loop can be null.
	for ip, l := range c.index[:c.np] {
		c.x[l] = c.z[ip]
	}
	return
}

// checkFeasible sees if each coefficient of the new solution 𝐳 is strictly
// interior to its constraint region. If not, hitbnd is set along with the
// smallest interpolation fraction alpha ∈ (0,1] and the position jj and
// bound ibound of the first coefficient attaining it.
func (c *solveCtx[F]) checkFeasible() {
	c.alpha = two
	for ip, l := range c.index[:c.np] {
		lbound := 0
		if c.z[ip] <= c.bnd[2*l] {
			// z[ip] hits lower bound.
			lbound = 1
		} else if c.z[ip] >= c.bnd[2*l+1] {
			// z[ip] hits upper bound.
			lbound = 2
		}
		if lbound != 0 {
			if t := (c.bnd[2*l+lbound-1] - c.x[l]) / (c.z[ip] - c.x[l]); c.alpha > t {
				c.alpha, c.jj, c.ibound = t, ip, lbound
			}
		}
	}
	c.hitbnd = abs(c.alpha-two) > zero
}

// moveToSetZ modifies 𝐀, 𝐛 and the index array to move coefficient i from
// set ℙ back to set ℤ, pinning x[i] on the bound it hit. The rows below the
// removed pivot are re-triangularized by plane rotations.
func (c *solveCtx[F]) moveToSetZ() {
	i, jj := c.i, c.jj
	mda, n := c.mda, c.n

	c.x[i] = c.bnd[2*i+c.ibound-1]
	if abs(c.x[i]) > zero && jj >= 0 {
		axpy(jj+1, -c.x[i], c.a[i*mda:], c.b)
	}

	// The following loop can be null.
	for j := jj + 1; j < c.np; j++ {
		ii := c.index[j]
		c.index[j-1] = ii

		cii := c.a[ii*mda:]
		cc, ss, r := rotg(cii[j-1], cii[j])
		cii[j-1] = r
		sm := r

		// The plane rotation is applied to two rows of 𝐀 and the right-hand
		// side. One row is moved to the scratch array s and then the updates
		// are computed. The rotation touches column ii as well, so its pair
		// is written back exactly as (r, 0) afterwards.
		for l := 0; l < n; l++ {
			c.s[l] = c.a[j-1+l*mda]
		}
		for l := 0; l < n; l++ {
			c.a[j-1+l*mda] = cc*c.s[l] + ss*c.a[j+l*mda]
			c.a[j+l*mda] = cc*c.a[j+l*mda] - ss*c.s[l]
		}
		cii[j-1] = sm
		cii[j] = zero

		sm = c.b[j-1]
		c.b[j-1] = cc*sm + ss*c.b[j]
		c.b[j] = cc*c.b[j] - ss*sm
	}

	c.np--
	c.iz1--
	c.index[c.iz1] = i
}

// termination computes the norm of the residual vector.
func (c *solveCtx[F]) termination() {
	if c.np < c.m {
		c.rnorm = nrm2(c.b[c.np:c.m], c.fast)
	} else {
		// ℤ is exhausted, the dual vector vanishes identically.
		vzero(c.w[:c.n])
	}
}
