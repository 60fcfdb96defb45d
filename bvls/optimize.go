// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bvls

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one summary after each fit
	LogLast LogLevel = 0
	// LogEval print also the bound activity of the final solution
	LogEval LogLevel = 1
	// LogVerbose print details of the fit including x and w (level > 100)
	LogVerbose LogLevel = 101
)

// Logger handles logging output for the solver.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

// Bound represents the bounds for a solution coefficient.
type Bound[F Float] struct {
	Lower, Upper F
}

// Problem specifies the problem for BVLS solver.
type Problem[F Float] struct {
	M, N int // The problem dimension: m observations by n coefficients
	A    []F // The m × n coefficient matrix in column-major order
	B    []F // The m-vector of observations
	// Optional bounds:
	//  - lower bounds are considered not exist when 𝒍ᵢ ≤ -𝚖𝚊𝚡(F)
	//  - upper bounds are considered not exist when 𝒖ᵢ ≥ +𝚖𝚊𝚡(F)
	Bounds []Bound[F]
	// The relative linear dependence tolerance of candidate columns,
	// zero selects the machine precision of F.
	Eps F
	// The fit stop when the number of feasibility passes exceeds limit,
	// zero selects 3n.
	MaxIter int
	// Skip the over/underflow guards of the norm computation.
	FastNorm bool
}

// New creates a new BVLS solver for given problem.
func (p *Problem[F]) New(logger *Logger) (solver *Solver[F], err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	m, n := p.M, p.N
	bounds := p.Bounds

	if bounds == nil {
		big := maxFloat[F]()
		bounds = make([]Bound[F], n)
		for i := range bounds {
			bounds[i].Lower = -big
			bounds[i].Upper = +big
		}
	}

	switch {
	case m < 2 || n < 2:
		err = errors.New("problem dimension must not less than 2")
	case len(p.A) != m*n:
		err = errors.New("matrix size must equal to m×n")
	case len(p.B) != m:
		err = errors.New("observation size must equal to m")
	case isNaN(p.Eps) || p.Eps < zero:
		err = errors.New("dependence tolerance must not less than 0")
	case p.MaxIter < 0:
		err = errors.New("max iteration must not less than 0")
	case len(bounds) != n:
		err = errors.New("bounds size must equal to n")
	}

	for k, b := range bounds {
		if isNaN(b.Lower) || isNaN(b.Upper) || b.Lower > b.Upper {
			err = errors.New(fmt.Sprintf("bound range at %d has no feasible solution", k))
			break
		}
	}

	if err != nil {
		return
	}

	bnd := make([]F, 2*n)
	for i, b := range bounds {
		bnd[2*i], bnd[2*i+1] = b.Lower, b.Upper
	}

	solver = &Solver[F]{
		m: m, n: n,
		a:      slices.Clone(p.A),
		b:      slices.Clone(p.B),
		bnd:    bnd,
		eps:    p.Eps,
		itmax:  p.MaxIter,
		fast:   p.FastNorm,
		logger: logger,
	}
	return
}

// Solver implemented using the BVLS algorithm.
type Solver[F Float] struct {
	m, n   int
	a, b   []F
	bnd    []F
	eps    F
	itmax  int
	fast   bool
	logger *Logger
}

// Workspace contains the state and context of the fitting process.
// Given problem dimension m × n, total work space is F[m×n + 2×m + 5×n].
type Workspace[F Float] struct {
	m, n  int
	a, b  []F
	bnd   []F
	x, w  []F
	z, s  []F
	index []int
}

// Result contains the final result of the fitting process.
type Result[F Float] struct {
	OK      bool // Whether the fitting was solved.
	X       []F  // Final solution vector.
	W       []F  // Final dual vector.
	RNorm   F    // Euclidean norm of the final residual.
	Summary      // Fitting summary.
}

// Summary contains a summary of the fitting process.
type Summary struct {
	Status  Status // Final status after fitting.
	NumIter int    // Number of feasibility passes performed.
	NumFree int    // Number of coefficients free of their bounds.
}

// Init allocate the workspace for BVLS solver.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one solver.
func (s *Solver[F]) Init() *Workspace[F] {
	w := new(Workspace[F])
	w.m, w.n = s.m, s.n

	m, n := s.m, s.n
	wrk := make([]F, m*n+2*m+5*n)

	ia := 0
	ib := ia + m*n
	ik := ib + m
	ix := ik + 2*n
	iw := ix + n
	iz := iw + n
	is := iz + m

	w.a = wrk[ia:ib]
	w.b = wrk[ib:ik]
	w.bnd = wrk[ik:ix]
	w.x = wrk[ix:iw]
	w.w = wrk[iw:iz]
	w.z = wrk[iz:is]
	w.s = wrk[is : is+n]
	w.index = make([]int, n)

	return w
}

// Fit runs the fitting process using workspace w.
// The problem data is copied into the workspace on each call,
// so the arrays held by the solver are never modified.
func (s *Solver[F]) Fit(w *Workspace[F]) *Result[F] {

	if w.m != s.m || w.n != s.n {
		panic("workspace dimension not match spec")
	}

	copy(w.a, s.a)
	copy(w.b, s.b)
	copy(w.bnd, s.bnd)

	rnorm, nsetp, iter, status := BVLS(s.m, s.n,
		w.a, s.m, w.b, w.bnd, w.x, w.w, w.z, w.s, w.index,
		s.eps, s.itmax, s.fast)

	res := &Result[F]{
		OK:    status == Solved,
		X:     slices.Clone(w.x),
		W:     slices.Clone(w.w),
		RNorm: rnorm,
		Summary: Summary{
			Status:  status,
			NumIter: iter,
			NumFree: nsetp,
		},
	}
	s.printFit(res)
	return res
}

// printFit logs the final statistics of the fitting process,
// including the exit status, pass count and bound activity.
func (s *Solver[F]) printFit(res *Result[F]) {

	log := s.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("RUNNING THE BVLS CODE\n")
	log.log("           * * *\n")
	log.log("M = %d    N = %d\n", s.m, s.n)
	log.log("Exit = %v    Tit = %5d    Nfree = %5d    Rnorm = %12.5e\n",
		res.Status, res.NumIter, res.NumFree, res.RNorm)

	if log.enable(LogEval) {
		low, up := 0, 0
		for i, x := range res.X {
			if x <= s.bnd[2*i] {
				low++
			} else if x >= s.bnd[2*i+1] {
				up++
			}
		}
		log.log("Nact = %d at lower bound, %d at upper bound\n", low, up)
	}

	if log.enable(LogVerbose) {
		log.log("\n X = ")
		for i, x := range res.X {
			log.log("%.2e ", x)
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\n W = ")
		for i, d := range res.W {
			log.log("%.2e ", d)
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\n")
	}
}
