package polynomial

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v4/group/edwards25519"
	"go.dedis.ch/kyber/v4/share"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

func testCurves() []curves.Curve {
	return []curves.Curve{curves.NewEd25519(), curves.NewSecp256k1()}
}

func TestNew(t *testing.T) {
	curve := curves.NewSecp256k1()

	t.Run("with random secret", func(t *testing.T) {
		poly, err := New(curve, 2, nil, rand.Reader)
		require.NoError(t, err)
		assert.Len(t, poly.Coefficients, 3)
		assert.Equal(t, 2, poly.Degree())
		for i, c := range poly.Coefficients {
			assert.NotNil(t, c, "coefficient %d", i)
		}
	})

	t.Run("with provided secret", func(t *testing.T) {
		secret := curve.ScalarFromUint64(12345)
		poly, err := New(curve, 2, secret, rand.Reader)
		require.NoError(t, err)
		assert.True(t, poly.Coefficients[0].Equal(secret))
		assert.True(t, poly.Evaluate(curve.NewScalar()).Equal(secret))
	})

	t.Run("sharing of zero", func(t *testing.T) {
		poly, err := NewZero(curve, 3, rand.Reader)
		require.NoError(t, err)
		assert.True(t, poly.Coefficients[0].IsZero())
		assert.True(t, poly.Commit().IsIdentity())
	})
}

func TestEvaluate(t *testing.T) {
	for _, curve := range testCurves() {
		// f(x) = 5 + 3x + 2x^2
		poly := &Polynomial{
			Coefficients: []curves.Scalar{
				curve.ScalarFromUint64(5),
				curve.ScalarFromUint64(3),
				curve.ScalarFromUint64(2),
			},
			Curve: curve,
		}
		assert.True(t, poly.EvaluateAt(1).Equal(curve.ScalarFromUint64(10)))
		assert.True(t, poly.EvaluateAt(2).Equal(curve.ScalarFromUint64(19)))
		assert.True(t, poly.EvaluateAt(10).Equal(curve.ScalarFromUint64(235)))
	}
}

func TestReconstructAnySubset(t *testing.T) {
	for _, curve := range testCurves() {
		t.Run(string(curve.Name()), func(t *testing.T) {
			secret, err := curve.RandomScalar(rand.Reader)
			require.NoError(t, err)
			poly, err := New(curve, 2, secret, rand.Reader)
			require.NoError(t, err)

			indices := []uint64{3, 17, 1 << 40, 99, 12}
			shares := poly.Shares(indices)

			subsets := [][]uint64{
				{3, 17, 1 << 40},
				{99, 12, 3},
				{17, 99, 12},
				{3, 17, 1 << 40, 99, 12},
			}
			for _, subset := range subsets {
				ys := make([]curves.Scalar, len(subset))
				for i, idx := range subset {
					ys[i] = shares[idx]
				}
				got, err := Reconstruct(curve, subset, ys)
				require.NoError(t, err)
				assert.True(t, got.Equal(secret), "subset %v", subset)
			}

			// t-1 shares interpolate to something else
			got, err := Reconstruct(curve, []uint64{3, 17}, []curves.Scalar{shares[3], shares[17]})
			require.NoError(t, err)
			assert.False(t, got.Equal(secret))
		})
	}
}

func TestInterpolateAtIndex(t *testing.T) {
	curve := curves.NewEd25519()
	poly, err := New(curve, 2, nil, rand.Reader)
	require.NoError(t, err)

	indices := []uint64{2, 5, 9}
	shares := poly.Shares(indices)
	ys := []curves.Scalar{shares[2], shares[5], shares[9]}

	got, err := Interpolate(curve, indices, ys, curve.ScalarFromUint64(42))
	require.NoError(t, err)
	assert.True(t, got.Equal(poly.EvaluateAt(42)))
}

func TestLeadingCoefficient(t *testing.T) {
	for _, curve := range testCurves() {
		poly, err := New(curve, 3, nil, rand.Reader)
		require.NoError(t, err)

		indices := []uint64{4, 8, 15, 16}
		shares := poly.Shares(indices)
		ys := []curves.Scalar{shares[4], shares[8], shares[15], shares[16]}

		lead, err := LeadingCoefficient(curve, indices, ys)
		require.NoError(t, err)
		assert.True(t, lead.Equal(poly.Coefficients[3]), curve.Name())
	}
}

func TestLagrangeErrors(t *testing.T) {
	curve := curves.NewSecp256k1()
	one := curve.ScalarFromUint64(1)

	_, err := AtZero(curve, nil)
	assert.ErrorIs(t, err, tss.ErrInvalidParameters)

	_, err = AtZero(curve, []uint64{1, 1})
	assert.ErrorIs(t, err, tss.ErrInvalidParameters)

	_, err = AtZero(curve, []uint64{0, 1})
	assert.ErrorIs(t, err, tss.ErrInvalidParameters)

	_, err = Interpolate(curve, []uint64{1, 2}, []curves.Scalar{one}, one)
	assert.ErrorIs(t, err, tss.ErrInvalidParameters)
}

func TestPower(t *testing.T) {
	curve := curves.NewEd25519()
	x := curve.ScalarFromUint64(3)
	assert.True(t, Power(curve, x, 0).Equal(curve.ScalarFromUint64(1)))
	assert.True(t, Power(curve, x, 4).Equal(curve.ScalarFromUint64(81)))
}

// The same sharing must reconstruct identically through kyber's implementation.
func TestReconstructMatchesKyber(t *testing.T) {
	curve := curves.NewEd25519()
	suite := edwards25519.NewBlakeSHA256Ed25519()

	poly, err := New(curve, 2, nil, rand.Reader)
	require.NoError(t, err)

	// kyber evaluates share I at x = I+1
	toKyber := func(index uint64) *share.PriShare {
		v := suite.Scalar()
		require.NoError(t, v.UnmarshalBinary(poly.EvaluateAt(index).Bytes()))
		return &share.PriShare{V: v}
	}
	s1, s2, s3 := toKyber(1), toKyber(2), toKyber(3)
	s1.I, s2.I, s3.I = 0, 1, 2

	recovered, err := share.RecoverSecret(suite, []*share.PriShare{s1, s3, s2}, 3, 3)
	require.NoError(t, err)
	raw, err := recovered.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, poly.Coefficients[0].Bytes(), raw)

	ours, err := Reconstruct(curve, []uint64{1, 2, 3}, []curves.Scalar{
		poly.EvaluateAt(1), poly.EvaluateAt(2), poly.EvaluateAt(3),
	})
	require.NoError(t, err)
	assert.Equal(t, raw, ours.Bytes())
}
