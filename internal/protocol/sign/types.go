package sign

import (
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Signature represents the result of the signing protocol.
type Signature struct {
	// Bytes is the signature in the curve's native encoding: R || S for
	// Ed25519, x(R) || S for BIP-340.
	Bytes []byte
	// Recovery is the y parity of the dealt group nonce (secp256k1 only).
	Recovery byte
	// Participants are the member indices whose partials were combined.
	Participants []uint64
}

// Dealt is the coordinator-side nonce material of a session.
type Dealt struct {
	Nonce    []byte
	Blinding map[uint64]tss.Envelope
}

func encodePartial(r curves.Point, s curves.Scalar) []byte {
	out := append([]byte(nil), r.Bytes()...)
	return append(out, s.Bytes()...)
}

func decodePartial(curve curves.Curve, p tss.PartialSignature) (curves.Point, curves.Scalar, error) {
	size := curve.PointSize()
	if len(p.Bytes) != size+curve.ScalarSize() {
		return nil, nil, errors.Wrapf(tss.ErrInvalidFormat, "partial signature of %d bytes", len(p.Bytes))
	}
	r, err := curve.PointFromBytes(p.Bytes[:size])
	if err != nil {
		return nil, nil, err
	}
	s, err := curve.ScalarFromBytes(p.Bytes[size:])
	if err != nil {
		return nil, nil, err
	}
	return r, s, nil
}
