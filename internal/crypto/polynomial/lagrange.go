package polynomial

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Coefficients returns the Lagrange basis values of the index set at x:
// λ_j(x) = Π_{m≠j} (x - x_m) / (x_j - x_m).
func Coefficients(curve curves.Curve, indices []uint64, x curves.Scalar) ([]curves.Scalar, error) {
	xs, err := evaluationPoints(curve, indices)
	if err != nil {
		return nil, err
	}
	lambdas := make([]curves.Scalar, len(xs))
	for j, xj := range xs {
		num := curve.ScalarFromUint64(1)
		den := curve.ScalarFromUint64(1)
		for m, xm := range xs {
			if m == j {
				continue
			}
			num = num.Mul(x.Sub(xm))
			den = den.Mul(xj.Sub(xm))
		}
		inv, err := den.Invert()
		if err != nil {
			return nil, err
		}
		lambdas[j] = num.Mul(inv)
	}
	return lambdas, nil
}

// AtZero returns λ_j(0) for each index, the weights that reconstruct f(0).
func AtZero(curve curves.Curve, indices []uint64) ([]curves.Scalar, error) {
	return Coefficients(curve, indices, curve.NewScalar())
}

// Scale multiplies every value by its coefficient.
func Scale(values, lambdas []curves.Scalar) []curves.Scalar {
	out := make([]curves.Scalar, len(values))
	for i := range values {
		out[i] = values[i].Mul(lambdas[i])
	}
	return out
}

// Interpolate evaluates at x the unique polynomial of degree len(indices)-1
// through the points (index_j, ys_j).
func Interpolate(curve curves.Curve, indices []uint64, ys []curves.Scalar, x curves.Scalar) (curves.Scalar, error) {
	if len(indices) != len(ys) {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "%d indices for %d values", len(indices), len(ys))
	}
	lambdas, err := Coefficients(curve, indices, x)
	if err != nil {
		return nil, err
	}
	return sum(curve, Scale(ys, lambdas)), nil
}

// Reconstruct interpolates the shares at x = 0.
func Reconstruct(curve curves.Curve, indices []uint64, shares []curves.Scalar) (curves.Scalar, error) {
	return Interpolate(curve, indices, shares, curve.NewScalar())
}

// LeadingCoefficient returns the coefficient of x^(k-1) of the polynomial
// through k points: Σ_j y_j / Π_{m≠j} (x_j - x_m).
func LeadingCoefficient(curve curves.Curve, indices []uint64, ys []curves.Scalar) (curves.Scalar, error) {
	if len(indices) != len(ys) {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "%d indices for %d values", len(indices), len(ys))
	}
	xs, err := evaluationPoints(curve, indices)
	if err != nil {
		return nil, err
	}
	acc := curve.NewScalar()
	for j, xj := range xs {
		den := curve.ScalarFromUint64(1)
		for m, xm := range xs {
			if m != j {
				den = den.Mul(xj.Sub(xm))
			}
		}
		inv, err := den.Invert()
		if err != nil {
			return nil, err
		}
		acc = acc.Add(ys[j].Mul(inv))
	}
	return acc, nil
}

// Power returns x^k.
func Power(curve curves.Curve, x curves.Scalar, k uint64) curves.Scalar {
	result := curve.ScalarFromUint64(1)
	for ; k > 0; k-- {
		result = result.Mul(x)
	}
	return result
}

func sum(curve curves.Curve, values []curves.Scalar) curves.Scalar {
	acc := curve.NewScalar()
	for _, v := range values {
		acc = acc.Add(v)
	}
	return acc
}

func evaluationPoints(curve curves.Curve, indices []uint64) ([]curves.Scalar, error) {
	if len(indices) == 0 {
		return nil, errors.Wrap(tss.ErrInvalidParameters, "empty index set")
	}
	seen := make(map[uint64]struct{}, len(indices))
	xs := make([]curves.Scalar, len(indices))
	for i, idx := range indices {
		if _, dup := seen[idx]; dup {
			return nil, errors.Wrap(tss.ErrInvalidParameters, fmt.Sprintf("duplicate index %d", idx))
		}
		seen[idx] = struct{}{}
		x, err := curves.IndexScalar(curve, idx)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	return xs, nil
}
