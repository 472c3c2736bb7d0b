package curves

import (
	"io"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Ed25519Curve implements Curve over edwards25519. Scalars are little-endian.
type Ed25519Curve struct{}

func NewEd25519() Curve {
	return &Ed25519Curve{}
}

func (c *Ed25519Curve) Name() tss.CurveName {
	return tss.Ed25519
}

func (c *Ed25519Curve) ScalarSize() int { return 32 }
func (c *Ed25519Curve) PointSize() int  { return 32 }

func (c *Ed25519Curve) NewScalar() Scalar {
	return &Ed25519Scalar{s: edwards25519.NewScalar()}
}

func (c *Ed25519Curve) ScalarFromUint64(v uint64) Scalar {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(uint64Bytes(v, true))
	if err != nil {
		// a uint64 is always below the group order
		panic(err)
	}
	return &Ed25519Scalar{s: s}
}

func (c *Ed25519Curve) ScalarFromBytes(b []byte) (Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	return &Ed25519Scalar{s: s}, nil
}

// ScalarFromHash expects a 64-byte digest such as SHA-512.
func (c *Ed25519Curve) ScalarFromHash(digest []byte) (Scalar, error) {
	s, err := edwards25519.NewScalar().SetUniformBytes(digest)
	if err != nil {
		return nil, errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	return &Ed25519Scalar{s: s}, nil
}

func (c *Ed25519Curve) RandomScalar(r io.Reader) (Scalar, error) {
	var b [64]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Wrap(err, "read randomness")
		}
		s, err := edwards25519.NewScalar().SetUniformBytes(b[:])
		if err != nil {
			return nil, err
		}
		if s.Equal(edwards25519.NewScalar()) == 0 {
			return &Ed25519Scalar{s: s}, nil
		}
	}
}

func (c *Ed25519Curve) BasePoint() Point {
	return &Ed25519Point{p: edwards25519.NewGeneratorPoint()}
}

func (c *Ed25519Curve) Identity() Point {
	return &Ed25519Point{p: edwards25519.NewIdentityPoint()}
}

func (c *Ed25519Curve) PointFromBytes(b []byte) (Point, error) {
	p, err := edwards25519.NewIdentityPoint().SetBytes(b)
	if err != nil {
		return nil, errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	return &Ed25519Point{p: p}, nil
}

// Ed25519Scalar implements Scalar
type Ed25519Scalar struct {
	s *edwards25519.Scalar
}

func (s *Ed25519Scalar) Bytes() []byte {
	return s.s.Bytes()
}

func (s *Ed25519Scalar) Add(other Scalar) Scalar {
	return &Ed25519Scalar{s: edwards25519.NewScalar().Add(s.s, asEd25519Scalar(other))}
}

func (s *Ed25519Scalar) Sub(other Scalar) Scalar {
	return &Ed25519Scalar{s: edwards25519.NewScalar().Subtract(s.s, asEd25519Scalar(other))}
}

func (s *Ed25519Scalar) Mul(other Scalar) Scalar {
	return &Ed25519Scalar{s: edwards25519.NewScalar().Multiply(s.s, asEd25519Scalar(other))}
}

func (s *Ed25519Scalar) Neg() Scalar {
	return &Ed25519Scalar{s: edwards25519.NewScalar().Negate(s.s)}
}

func (s *Ed25519Scalar) Invert() (Scalar, error) {
	if s.IsZero() {
		return nil, errors.New("inverse of zero")
	}
	return &Ed25519Scalar{s: edwards25519.NewScalar().Invert(s.s)}, nil
}

func (s *Ed25519Scalar) IsZero() bool {
	return s.s.Equal(edwards25519.NewScalar()) == 1
}

func (s *Ed25519Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Ed25519Scalar)
	return ok && s.s.Equal(o.s) == 1
}

func asEd25519Scalar(s Scalar) *edwards25519.Scalar {
	o, ok := s.(*Ed25519Scalar)
	if !ok {
		panic("curves: mixing ed25519 scalar with another curve")
	}
	return o.s
}

// Ed25519Point implements Point
type Ed25519Point struct {
	p *edwards25519.Point
}

func (p *Ed25519Point) Bytes() []byte {
	return p.p.Bytes()
}

func (p *Ed25519Point) Add(other Point) Point {
	return &Ed25519Point{p: edwards25519.NewIdentityPoint().Add(p.p, asEd25519Point(other))}
}

func (p *Ed25519Point) Neg() Point {
	return &Ed25519Point{p: edwards25519.NewIdentityPoint().Negate(p.p)}
}

func (p *Ed25519Point) ScalarMult(scalar Scalar) Point {
	return &Ed25519Point{p: edwards25519.NewIdentityPoint().ScalarMult(asEd25519Scalar(scalar), p.p)}
}

func (p *Ed25519Point) IsIdentity() bool {
	return p.p.Equal(edwards25519.NewIdentityPoint()) == 1
}

// TorsionFree reports whether p lies in the prime-order subgroup, that is
// whether 8^-1 * (8 * p) gives p back.
func (p *Ed25519Point) TorsionFree() bool {
	cleared := edwards25519.NewIdentityPoint().MultByCofactor(p.p)
	return edwards25519.NewIdentityPoint().ScalarMult(eightInverse, cleared).Equal(p.p) == 1
}

var eightInverse = func() *edwards25519.Scalar {
	eight, err := edwards25519.NewScalar().SetCanonicalBytes(uint64Bytes(8, true))
	if err != nil {
		panic(err)
	}
	return edwards25519.NewScalar().Invert(eight)
}()

func (p *Ed25519Point) Equal(other Point) bool {
	o, ok := other.(*Ed25519Point)
	return ok && p.p.Equal(o.p) == 1
}

func asEd25519Point(p Point) *edwards25519.Point {
	o, ok := p.(*Ed25519Point)
	if !ok {
		panic("curves: mixing ed25519 point with another curve")
	}
	return o.p
}
