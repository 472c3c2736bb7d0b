package curves

import (
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Secp256k1Curve implements Curve over secp256k1. Scalars are big-endian and
// points use the 33-byte compressed form; the identity encodes as 33 zero bytes.
type Secp256k1Curve struct{}

// NewSecp256k1 returns a new instance of the Secp256k1 curve wrapper
func NewSecp256k1() Curve {
	return &Secp256k1Curve{}
}

func (c *Secp256k1Curve) Name() tss.CurveName {
	return tss.Secp256k1
}

func (c *Secp256k1Curve) ScalarSize() int { return 32 }
func (c *Secp256k1Curve) PointSize() int  { return 33 }

func (c *Secp256k1Curve) NewScalar() Scalar {
	return &Secp256k1Scalar{}
}

func (c *Secp256k1Curve) ScalarFromUint64(v uint64) Scalar {
	s := &Secp256k1Scalar{}
	s.s.SetByteSlice(uint64Bytes(v, false))
	return s
}

func (c *Secp256k1Curve) ScalarFromBytes(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "scalar length %d", len(b))
	}
	s := &Secp256k1Scalar{}
	if overflow := s.s.SetByteSlice(b); overflow {
		return nil, errors.Wrap(tss.ErrInvalidFormat, "scalar exceeds group order")
	}
	return s, nil
}

// ScalarFromHash interprets a 32-byte digest as a big-endian integer mod n.
func (c *Secp256k1Curve) ScalarFromHash(digest []byte) (Scalar, error) {
	if len(digest) != 32 {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "digest length %d", len(digest))
	}
	s := &Secp256k1Scalar{}
	s.s.SetByteSlice(digest)
	return s, nil
}

func (c *Secp256k1Curve) RandomScalar(r io.Reader) (Scalar, error) {
	var b [32]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, errors.Wrap(err, "read randomness")
		}
		s := &Secp256k1Scalar{}
		if overflow := s.s.SetByteSlice(b[:]); !overflow && !s.s.IsZero() {
			return s, nil
		}
	}
}

func (c *Secp256k1Curve) BasePoint() Point {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	p := &Secp256k1Point{}
	secp256k1.ScalarBaseMultNonConst(&one, &p.p)
	p.p.ToAffine()
	return p
}

func (c *Secp256k1Curve) Identity() Point {
	return &Secp256k1Point{}
}

func (c *Secp256k1Curve) PointFromBytes(b []byte) (Point, error) {
	if len(b) != 33 {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "point length %d", len(b))
	}
	if isZeroBytes(b) {
		return &Secp256k1Point{}, nil
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	p := &Secp256k1Point{}
	pub.AsJacobian(&p.p)
	return p, nil
}

// Secp256k1Scalar implements Scalar
type Secp256k1Scalar struct {
	s secp256k1.ModNScalar
}

func (s *Secp256k1Scalar) Bytes() []byte {
	b := s.s.Bytes()
	return b[:]
}

func (s *Secp256k1Scalar) Add(other Scalar) Scalar {
	r := &Secp256k1Scalar{}
	r.s.Add2(&s.s, asSecp256k1Scalar(other))
	return r
}

func (s *Secp256k1Scalar) Sub(other Scalar) Scalar {
	var neg secp256k1.ModNScalar
	neg.NegateVal(asSecp256k1Scalar(other))
	r := &Secp256k1Scalar{}
	r.s.Add2(&s.s, &neg)
	return r
}

func (s *Secp256k1Scalar) Mul(other Scalar) Scalar {
	r := &Secp256k1Scalar{}
	r.s.Mul2(&s.s, asSecp256k1Scalar(other))
	return r
}

func (s *Secp256k1Scalar) Neg() Scalar {
	r := &Secp256k1Scalar{}
	r.s.NegateVal(&s.s)
	return r
}

func (s *Secp256k1Scalar) Invert() (Scalar, error) {
	if s.s.IsZero() {
		return nil, errors.New("inverse of zero")
	}
	r := &Secp256k1Scalar{}
	r.s.InverseValNonConst(&s.s)
	return r, nil
}

func (s *Secp256k1Scalar) IsZero() bool {
	return s.s.IsZero()
}

func (s *Secp256k1Scalar) Equal(other Scalar) bool {
	o, ok := other.(*Secp256k1Scalar)
	return ok && s.s.Equals(&o.s)
}

func asSecp256k1Scalar(s Scalar) *secp256k1.ModNScalar {
	o, ok := s.(*Secp256k1Scalar)
	if !ok {
		panic("curves: mixing secp256k1 scalar with another curve")
	}
	return &o.s
}

// Secp256k1Point implements Point. The point is kept in affine form; the zero
// value is the point at infinity.
type Secp256k1Point struct {
	p secp256k1.JacobianPoint
}

func (p *Secp256k1Point) Bytes() []byte {
	if p.IsIdentity() {
		return make([]byte, 33)
	}
	return secp256k1.NewPublicKey(&p.p.X, &p.p.Y).SerializeCompressed()
}

// HasOddY reports the parity of the affine y coordinate.
func (p *Secp256k1Point) HasOddY() bool {
	return !p.IsIdentity() && p.p.Y.IsOdd()
}

func (p *Secp256k1Point) Add(other Point) Point {
	r := &Secp256k1Point{}
	secp256k1.AddNonConst(&p.p, asSecp256k1Point(other), &r.p)
	r.normalize()
	return r
}

func (p *Secp256k1Point) Neg() Point {
	r := &Secp256k1Point{p: p.p}
	if !r.IsIdentity() {
		r.p.Y.Negate(1).Normalize()
	}
	return r
}

func (p *Secp256k1Point) ScalarMult(scalar Scalar) Point {
	r := &Secp256k1Point{}
	secp256k1.ScalarMultNonConst(asSecp256k1Scalar(scalar), &p.p, &r.p)
	r.normalize()
	return r
}

func (p *Secp256k1Point) IsIdentity() bool {
	return (p.p.X.IsZero() && p.p.Y.IsZero()) || p.p.Z.IsZero()
}

func (p *Secp256k1Point) Equal(other Point) bool {
	o, ok := other.(*Secp256k1Point)
	if !ok {
		return false
	}
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() == o.IsIdentity()
	}
	return p.p.X.Equals(&o.p.X) && p.p.Y.Equals(&o.p.Y)
}

func (p *Secp256k1Point) normalize() {
	if p.IsIdentity() {
		p.p = secp256k1.JacobianPoint{}
		return
	}
	p.p.ToAffine()
}

func asSecp256k1Point(p Point) *secp256k1.JacobianPoint {
	o, ok := p.(*Secp256k1Point)
	if !ok {
		panic("curves: mixing secp256k1 point with another curve")
	}
	return &o.p
}

func isZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
