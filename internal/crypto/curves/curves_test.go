package curves

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

func allCurves() []Curve {
	return []Curve{NewEd25519(), NewSecp256k1()}
}

func TestForName(t *testing.T) {
	c, err := ForName(tss.Ed25519)
	require.NoError(t, err)
	assert.Equal(t, tss.Ed25519, c.Name())

	c, err = ForName(tss.Secp256k1)
	require.NoError(t, err)
	assert.Equal(t, 33, c.PointSize())

	_, err = ForName("p256")
	assert.ErrorIs(t, err, tss.ErrInvalidFormat)
}

func TestScalarArithmetic(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(string(c.Name()), func(t *testing.T) {
			a := c.ScalarFromUint64(12345)
			b := c.ScalarFromUint64(678)

			assert.True(t, a.Add(b).Equal(c.ScalarFromUint64(13023)))
			assert.True(t, a.Sub(b).Equal(c.ScalarFromUint64(11667)))
			assert.True(t, a.Mul(b).Equal(c.ScalarFromUint64(12345*678)))
			assert.True(t, a.Add(a.Neg()).IsZero())

			inv, err := a.Invert()
			require.NoError(t, err)
			assert.True(t, inv.Mul(a).Equal(c.ScalarFromUint64(1)))

			_, err = c.NewScalar().Invert()
			assert.Error(t, err)

			decoded, err := c.ScalarFromBytes(a.Bytes())
			require.NoError(t, err)
			assert.True(t, decoded.Equal(a))
			assert.Len(t, a.Bytes(), c.ScalarSize())
		})
	}
}

func TestScalarEndianness(t *testing.T) {
	le := NewEd25519().ScalarFromUint64(1).Bytes()
	assert.Equal(t, byte(1), le[0])

	be := NewSecp256k1().ScalarFromUint64(1).Bytes()
	assert.Equal(t, byte(1), be[31])
}

func TestScalarFromBytesRejectsNonCanonical(t *testing.T) {
	over := make([]byte, 32)
	for i := range over {
		over[i] = 0xff
	}
	for _, c := range allCurves() {
		_, err := c.ScalarFromBytes(over)
		assert.ErrorIs(t, err, tss.ErrInvalidFormat, c.Name())
		_, err = c.ScalarFromBytes([]byte{1, 2})
		assert.ErrorIs(t, err, tss.ErrInvalidFormat, c.Name())
	}
}

func TestPointArithmetic(t *testing.T) {
	for _, c := range allCurves() {
		t.Run(string(c.Name()), func(t *testing.T) {
			g := c.BasePoint()
			two := c.ScalarFromUint64(2)
			assert.True(t, g.ScalarMult(two).Equal(g.Add(g)))

			assert.True(t, g.Add(g.Neg()).IsIdentity())
			assert.True(t, c.Identity().IsIdentity())
			assert.True(t, g.Add(c.Identity()).Equal(g))

			k, err := c.RandomScalar(rand.Reader)
			require.NoError(t, err)
			p := g.ScalarMult(k)
			assert.Len(t, p.Bytes(), c.PointSize())

			decoded, err := c.PointFromBytes(p.Bytes())
			require.NoError(t, err)
			assert.True(t, decoded.Equal(p))

			id, err := c.PointFromBytes(c.Identity().Bytes())
			require.NoError(t, err)
			assert.True(t, id.IsIdentity())
		})
	}
}

func TestSecp256k1Parity(t *testing.T) {
	c := NewSecp256k1()
	k, err := c.RandomScalar(rand.Reader)
	require.NoError(t, err)
	p := c.BasePoint().ScalarMult(k).(*Secp256k1Point)
	neg := p.Neg().(*Secp256k1Point)
	assert.NotEqual(t, p.HasOddY(), neg.HasOddY())
	assert.Equal(t, p.Bytes()[1:], neg.Bytes()[1:])
}

func TestEd25519MatchesStdlibKeys(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	p, err := NewEd25519().PointFromBytes(pub)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), p.Bytes())
	assert.Len(t, priv.Seed(), 32)
}

func TestValidatePublicKey(t *testing.T) {
	c := NewEd25519()
	g := c.BasePoint()
	require.NoError(t, ValidatePublicKey(g))
	assert.ErrorIs(t, ValidatePublicKey(c.Identity()), tss.ErrInvalidFormat)

	// y = 0 decodes to a point of order 4
	small, err := c.PointFromBytes(make([]byte, 32))
	require.NoError(t, err)
	assert.False(t, small.IsIdentity())
	assert.ErrorIs(t, ValidatePublicKey(small), tss.ErrInvalidFormat)
	assert.ErrorIs(t, ValidatePublicKey(g.Add(small)), tss.ErrInvalidFormat)
	require.NoError(t, ValidatePublicKey(g.Add(small).Add(small.Neg())))

	k := NewSecp256k1()
	require.NoError(t, ValidatePublicKey(k.BasePoint()))
	id, err := k.PointFromBytes(make([]byte, 33))
	require.NoError(t, err)
	assert.ErrorIs(t, ValidatePublicKey(id), tss.ErrInvalidFormat)
}

func TestIndexScalar(t *testing.T) {
	c := NewSecp256k1()
	_, err := IndexScalar(c, 0)
	assert.ErrorIs(t, err, tss.ErrInvalidParameters)

	s, err := IndexScalar(c, 7)
	require.NoError(t, err)
	assert.True(t, s.Equal(c.ScalarFromUint64(7)))
}
