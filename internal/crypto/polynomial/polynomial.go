package polynomial

import (
	"io"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
)

// Polynomial represents a polynomial f(x) = a_0 + a_1*x + ... + a_t*x^t
// over the scalar field of the curve.
type Polynomial struct {
	Coefficients []curves.Scalar
	Curve        curves.Curve
}

// New generates a random polynomial of given degree with the constant term provided.
// If constant is nil, a random constant term is generated.
func New(curve curves.Curve, degree int, constant curves.Scalar, rand io.Reader) (*Polynomial, error) {
	coeffs := make([]curves.Scalar, degree+1)
	var err error

	// a_0 is the secret
	if constant == nil {
		coeffs[0], err = curve.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
	} else {
		coeffs[0] = constant
	}

	for i := 1; i <= degree; i++ {
		coeffs[i], err = curve.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
	}

	return &Polynomial{
		Coefficients: coeffs,
		Curve:        curve,
	}, nil
}

// NewZero returns a random sharing of zero with the given degree.
func NewZero(curve curves.Curve, degree int, rand io.Reader) (*Polynomial, error) {
	return New(curve, degree, curve.NewScalar(), rand)
}

func (p *Polynomial) Degree() int {
	return len(p.Coefficients) - 1
}

// Evaluate calculates f(x) with Horner's method.
func (p *Polynomial) Evaluate(x curves.Scalar) curves.Scalar {
	degree := p.Degree()
	result := p.Coefficients[degree]
	for i := degree - 1; i >= 0; i-- {
		result = result.Mul(x).Add(p.Coefficients[i])
	}
	return result
}

// EvaluateAt evaluates the polynomial at a member index.
func (p *Polynomial) EvaluateAt(index uint64) curves.Scalar {
	return p.Evaluate(p.Curve.ScalarFromUint64(index))
}

// Shares evaluates f at every index.
func (p *Polynomial) Shares(indices []uint64) map[uint64]curves.Scalar {
	out := make(map[uint64]curves.Scalar, len(indices))
	for _, idx := range indices {
		out[idx] = p.EvaluateAt(idx)
	}
	return out
}

// Commit returns a_0*G.
func (p *Polynomial) Commit() curves.Point {
	return p.Curve.BasePoint().ScalarMult(p.Coefficients[0])
}
