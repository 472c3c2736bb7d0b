package curves

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Scalar is an element of a curve's scalar field.
// Operations never modify the receiver.
type Scalar interface {
	// Bytes returns the canonical 32-byte encoding.
	Bytes() []byte
	Add(s Scalar) Scalar
	Sub(s Scalar) Scalar
	Mul(s Scalar) Scalar
	Neg() Scalar
	// Invert returns the multiplicative inverse. It fails for zero.
	Invert() (Scalar, error)
	IsZero() bool
	Equal(s Scalar) bool
}

// Point is an element of a curve's prime-order group.
type Point interface {
	// Bytes returns the compressed encoding.
	Bytes() []byte
	Add(p Point) Point
	Neg() Point
	ScalarMult(s Scalar) Point
	IsIdentity() bool
	Equal(p Point) bool
}

// Curve is the arithmetic capability the protocols are written against.
// A group picks its variant once and threads it through every operation.
type Curve interface {
	Name() tss.CurveName

	// ScalarSize and PointSize are encoding widths in bytes.
	ScalarSize() int
	PointSize() int

	NewScalar() Scalar
	ScalarFromUint64(v uint64) Scalar
	// ScalarFromBytes accepts only canonical encodings.
	ScalarFromBytes(b []byte) (Scalar, error)
	// ScalarFromHash reduces a hash digest into the field.
	ScalarFromHash(digest []byte) (Scalar, error)
	RandomScalar(r io.Reader) (Scalar, error)

	BasePoint() Point
	Identity() Point
	PointFromBytes(b []byte) (Point, error)
}

// ForName returns the curve variant for a group.
func ForName(name tss.CurveName) (Curve, error) {
	switch name {
	case tss.Ed25519:
		return NewEd25519(), nil
	case tss.Secp256k1:
		return NewSecp256k1(), nil
	default:
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "unsupported curve %q", name)
	}
}

// IndexScalar maps a member index to its evaluation point. Indices are never zero.
func IndexScalar(c Curve, index uint64) (Scalar, error) {
	if index == 0 {
		return nil, errors.Wrap(tss.ErrInvalidParameters, "member index must be nonzero")
	}
	return c.ScalarFromUint64(index), nil
}

// ValidatePublicKey rejects the identity and points with a small-order
// component. A key that passes is a generator of the prime-order group.
func ValidatePublicKey(p Point) error {
	if p.IsIdentity() {
		return errors.Wrap(tss.ErrInvalidFormat, "public key is the identity")
	}
	if t, ok := p.(interface{ TorsionFree() bool }); ok && !t.TorsionFree() {
		return errors.Wrap(tss.ErrInvalidFormat, "public key is outside the prime-order subgroup")
	}
	return nil
}

func uint64Bytes(v uint64, littleEndian bool) []byte {
	buf := make([]byte, 32)
	if littleEndian {
		binary.LittleEndian.PutUint64(buf, v)
	} else {
		binary.BigEndian.PutUint64(buf[24:], v)
	}
	return buf
}
