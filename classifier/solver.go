package classifier

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// Algorithm selects the binary dual solver.
type Algorithm int

const (
	// L2L1SVM is the L2-regularized L1-loss (hinge) support vector machine.
	L2L1SVM Algorithm = iota
	// L2L2SVM is the L2-regularized L2-loss (squared hinge) support vector machine.
	L2L2SVM
	// L2LR is L2-regularized logistic regression.
	L2LR
)

var algorithmNames = [...]string{"l2l1svm", "l2l2svm", "l2lr"}

func (a Algorithm) String() string {
	if a < 0 || int(a) >= len(algorithmNames) {
		return "unknown"
	}
	return algorithmNames[a]
}

// ParseAlgorithm returns the algorithm with the given name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for i, n := range algorithmNames {
		if n == name {
			return Algorithm(i), nil
		}
	}
	return 0, &AlgorithmError{Name: name}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if a < 0 || int(a) >= len(algorithmNames) {
		return nil, &AlgorithmError{Name: a.String()}
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	v, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

const (
	maxNewtonIterations = 100
	newtonEta           = 0.1
)

// problem is the read-only input shared by every binary solve.
type problem struct {
	instances []Instance
	dim       int
	bias      float64
}

// solution is the output of one binary solve.
type solution struct {
	weights        []float64
	bias           float64
	iterations     int
	supportVectors int
	objective      float64
}

func (p problem) target(i, label int) float64 {
	if p.instances[i].Label == label {
		return 1
	}
	return -1
}

func (p problem) dot(i int, w []float64, wb float64) float64 {
	d := p.instances[i].Dot(w)
	if p.bias > 0 {
		d += wb * p.bias
	}
	return d
}

func (p problem) squaredNorm(i int) float64 {
	q := p.instances[i].SquaredNorm()
	if p.bias > 0 {
		q += p.bias * p.bias
	}
	return q
}

func (p problem) update(i int, w []float64, wb *float64, d float64) {
	p.instances[i].AddTo(w, d)
	if p.bias > 0 {
		*wb += d * p.bias
	}
}

func shuffle(rng *rand.Rand, index []int, n int) {
	for i := 0; i < n; i++ {
		j := i + rng.IntN(n-i)
		index[i], index[j] = index[j], index[i]
	}
}

// solveSVM runs dual coordinate descent with shrinking for the hinge
// (l2loss false) or squared hinge (l2loss true) loss.
func solveSVM(ctx context.Context, p problem, label int, l2loss bool, cfg TrainerConfig, rng *rand.Rand) (solution, error) {
	n := len(p.instances)
	diag, upper := 0.0, cfg.Cost
	if l2loss {
		diag, upper = 0.5/cfg.Cost, math.Inf(1)
	}

	qd := make([]float64, n)
	alpha := make([]float64, n)
	y := make([]float64, n)
	index := make([]int, n)
	w := make([]float64, p.dim)
	var wb float64

	for i := range n {
		index[i] = i
		y[i] = p.target(i, label)
		qd[i] = diag + p.squaredNorm(i)
	}

	active := n
	pgMaxOld, pgMinOld := math.Inf(1), math.Inf(-1)
	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return solution{}, err
		}
		pgMaxNew, pgMinNew := math.Inf(-1), math.Inf(1)
		shuffle(rng, index, active)

		for s := 0; s < active; s++ {
			i := index[s]
			g := p.dot(i, w, wb)*y[i] - 1 + alpha[i]*diag

			var pg float64
			switch {
			case alpha[i] == 0:
				if g > pgMaxOld {
					active--
					index[s], index[active] = index[active], index[s]
					s--
					continue
				}
				pg = min(g, 0)
			case alpha[i] == upper:
				if g < pgMinOld {
					active--
					index[s], index[active] = index[active], index[s]
					s--
					continue
				}
				pg = max(g, 0)
			default:
				pg = g
			}

			pgMaxNew = max(pgMaxNew, pg)
			pgMinNew = min(pgMinNew, pg)

			if math.Abs(pg) > 1e-12 {
				old := alpha[i]
				switch {
				case qd[i] > 0:
					alpha[i] = min(max(alpha[i]-g/qd[i], 0), upper)
				case g < 0:
					// An all-zero instance under the hinge loss moves
					// straight to its bound; w is unchanged.
					alpha[i] = upper
				default:
					alpha[i] = 0
				}
				p.update(i, w, &wb, (alpha[i]-old)*y[i])
			}
		}

		if pgMaxNew-pgMinNew <= cfg.Epsilon {
			if active == n {
				break
			}
			active = n
			pgMaxOld, pgMinOld = math.Inf(1), math.Inf(-1)
			continue
		}

		pgMaxOld, pgMinOld = pgMaxNew, pgMinNew
		if pgMaxOld <= 0 {
			pgMaxOld = math.Inf(1)
		}
		if pgMinOld >= 0 {
			pgMinOld = math.Inf(-1)
		}
	}

	sv := 0
	for _, a := range alpha {
		if a > 0 {
			sv++
		}
	}
	return solution{weights: w, bias: wb, iterations: min(iter+1, cfg.MaxIterations), supportVectors: sv}, nil
}

// solveLR runs the dual coordinate descent for logistic regression. Each
// instance owns a pair of dual variables summing to C, updated by a
// one-variable Newton solve.
func solveLR(ctx context.Context, p problem, label int, cfg TrainerConfig, rng *rand.Rand) (solution, error) {
	n := len(p.instances)
	c := cfg.Cost
	innerEpsMin := min(1e-8, cfg.Epsilon)
	innerEps := 1e-2

	xtx := make([]float64, n)
	alpha := make([]float64, 2*n)
	y := make([]float64, n)
	index := make([]int, n)
	w := make([]float64, p.dim)
	var wb float64

	for i := range n {
		index[i] = i
		y[i] = p.target(i, label)
		alpha[2*i] = min(0.001*c, 1e-8)
		alpha[2*i+1] = c - alpha[2*i]
		xtx[i] = p.squaredNorm(i)
		p.update(i, w, &wb, y[i]*alpha[2*i])
	}

	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return solution{}, err
		}
		shuffle(rng, index, n)
		newtonIter := 0
		gmax := 0.0

		for s := range n {
			i := index[s]
			a := xtx[i]
			b := y[i] * p.dot(i, w, wb)

			ind1, ind2, sign := 2*i, 2*i+1, 1.0
			if 0.5*a*(alpha[ind2]-alpha[ind1])+b < 0 {
				ind1, ind2, sign = 2*i+1, 2*i, -1
			}

			old := alpha[ind1]
			z := old
			if c-z < 0.5*c {
				z *= 0.1
			}
			gp := a*(z-old) + sign*b + math.Log(z/(c-z))
			gmax = max(gmax, math.Abs(gp))

			inner := 0
			for ; inner <= maxNewtonIterations; inner++ {
				if math.Abs(gp) < innerEps {
					break
				}
				gpp := a + c/(c-z)/z
				if tmp := z - gp/gpp; tmp <= 0 {
					z *= newtonEta
				} else {
					z = tmp
				}
				gp = a*(z-old) + sign*b + math.Log(z/(c-z))
				newtonIter++
			}

			if inner > 0 {
				alpha[ind1] = z
				alpha[ind2] = c - z
				p.update(i, w, &wb, sign*(z-old)*y[i])
			}
		}

		if gmax < cfg.Epsilon {
			break
		}
		if newtonIter <= n/10 {
			innerEps = max(innerEpsMin, 0.1*innerEps)
		}
	}

	obj := 0.5 * (floats.Dot(w, w) + wb*wb)
	for i := range n {
		obj += alpha[2*i]*math.Log(alpha[2*i]) + alpha[2*i+1]*math.Log(alpha[2*i+1]) - c*math.Log(c)
	}
	return solution{weights: w, bias: wb, iterations: min(iter+1, cfg.MaxIterations), objective: obj}, nil
}
