// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

// axpy performs constant times a vector plus a vector operation.
func axpy[F Float](n int, da F, dx, dy []F) {
	if n <= 0 || da == 0 {
		return
	}
	m := uint(n % 4)
	if m > uint(len(dx)) || m > uint(len(dy)) {
		panic("bound check error")
	}
	for i := uint(0); i < m; i++ {
		dy[i] += da * dx[i]
	}
	if n < 4 {
		return
	}
	for i := m; i < uint(n); i += 4 {
		x := dx[i : i+4 : i+4]
		y := dy[i : i+4 : i+4]
		y[0] += da * x[0]
		y[1] += da * x[1]
		y[2] += da * x[2]
		y[3] += da * x[3]
	}
}

// dot computes the dot product of two vectors.
func dot[F Float](n int, dx, dy []F) (dot F) {
	if n <= 0 {
		return
	}
	m := uint(n % 5)
	if m > uint(len(dx)) || m > uint(len(dy)) {
		panic("bound check error")
	}
	for i := uint(0); i < m; i++ {
		dot += dx[i] * dy[i]
	}
	if n < 5 {
		return dot
	}
	for i := m; i < uint(n); i += 5 {
		x := dx[i : i+5 : i+5]
		y := dy[i : i+5 : i+5]
		dot += x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3] + x[4]*y[4]
	}
	return dot
}

// nrm2 computes the Euclidean norm of a vector x.
//
// The default mode scales the running sum of squares so that neither
// overflow nor underflow may occur for norms inside the range of F.
// The fast mode is the brute force 𝚜𝚚𝚛𝚝(𝐱ᵀ𝐱) without any scaling.
// It can speed up the computation considerably when the vector is large,
// but has to be used with care since it may lead to instabilities.
func nrm2[F Float](x []F, fast bool) F {
	n := uint(len(x))

	if fast {
		var sum F
		for i := uint(0); i < n; i++ {
			sum += x[i] * x[i]
		}
		return sqrt(sum)
	}

	if n < 1 {
		return zero
	}
	if n == 1 {
		return abs(x[0])
	}

	var scale F = zero
	var ssq F = one
	for i := uint(0); i < n; i++ {
		if absxi := abs(x[i]); absxi > 0 {
			if scale < absxi {
				sxi := scale / absxi
				ssq = 1 + ssq*sxi*sxi
				scale = absxi
			} else {
				sxi := absxi / scale
				ssq += sxi * sxi
			}
		}
	}

	return scale * sqrt(ssq)
}

// rotg computes the parameters of a 2×2 plane rotation matrix G
//
//	G ⎡a⎤ ≡ ⎡ cc ss⎤⎡a⎤ = ⎡r⎤    where r = ±(a²+b²)¹ᐟ²
//	  ⎣b⎦   ⎣-ss cc⎦⎣b⎦   ⎣0⎦
//
// scaled by |a|+|b| to avoid overflow, with the sign of r taken from
// the element of larger magnitude as in the BLAS srotg construction.
// When both elements are zero the identity rotation is returned.
func rotg[F Float](a, b F) (cc, ss, r F) {
	scale := abs(a) + abs(b)
	if scale <= zero {
		return one, zero, a
	}
	ra, rb := a/scale, b/scale
	r = scale * sqrt(ra*ra+rb*rb)
	roe := b
	if abs(a) > abs(b) {
		roe = a
	}
	if roe < zero {
		r = -r
	}
	cc, ss = a/r, b/r
	return
}

// vzero fills vector x with zero.
func vzero[F Float](dx []F) {
	n := uint(len(dx))
	m := n % 5
	if m > n {
		panic("bound check error")
	}
	for i := uint(0); i < m; i++ {
		dx[i] = zero
	}
	if n < 5 {
		return
	}
	for i := m; i < n; i += 5 {
		d := dx[i : i+5 : i+5]
		d[0] = zero
		d[1] = zero
		d[2] = zero
		d[3] = zero
		d[4] = zero
	}
}
