// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

// Given pivot vector v, htc constructs the Householder vector 𝐮 and scalar uₚ
// for the transformation Q𝐯 = [ -σ‖𝐯‖₂ 0 ··· 0 ]ᵀ where σ = 𝚜𝚐𝚗(𝐯₀).
//
// On input v contains the pivot vector starting at the pivot element.
// On output v[0] holds -σ‖𝐯‖₂ while the remaining elements stay untouched,
// so that v doubles as the subdiagonal part of 𝐮.
// The pivot element uₚ = 𝐯₀ + σ‖𝐯‖₂ of 𝐮 is returned separately.
//
// C.L. Lawson, R.J. Hanson, 'Solving least squares problems' Prentice Hall, 1974. (revised 1995 edition)
// Chapters 10.
func htc[F Float](v []F, fast bool) (up F) {
	vnorm := nrm2(v, fast)
	if v[0] > zero {
		vnorm = -vnorm
	}
	up = v[0] - vnorm
	v[0] = vnorm
	return
}

// hta applies the Householder transformation Q𝐯 = 𝐯 + ((𝐮ᵀ𝐯/s)/uₚ) × 𝐮
// held in u to the vector v, where s = -σ‖𝐮‖₂ is the norm produced by htc.
//
// On input u contains the Householder vector with its pivot element
// replaced by uₚ. Require s ≠ 0 and 𝚕𝚎𝚗(v) ≥ 𝚕𝚎𝚗(u).
func hta[F Float](u, v []F, s, up F) {
	var sm F
	for i, ui := range u {
		sm += (ui / s) * v[i]
	}
	sm /= up
	axpy(len(u), sm, u, v)
}
