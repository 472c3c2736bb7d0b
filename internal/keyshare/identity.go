package keyshare

import (
	"crypto/ed25519"
	"crypto/sha512"
	"io"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Identity is a member's long-term key pair on the group curve. Envelopes
// addressed to the member are sealed to its public key.
type Identity struct {
	curve  curves.Curve
	secret []byte
	priv   curves.Scalar
	pub    []byte
}

// NewIdentity generates a fresh identity key.
func NewIdentity(curveName tss.CurveName, rand io.Reader) (*Identity, error) {
	curve, err := curves.ForName(curveName)
	if err != nil {
		return nil, err
	}
	var secret []byte
	switch curveName {
	case tss.Ed25519:
		secret = make([]byte, ed25519.SeedSize)
		if _, err := io.ReadFull(rand, secret); err != nil {
			return nil, errors.Wrap(err, "read seed")
		}
	default:
		k, err := curve.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		secret = k.Bytes()
	}
	return IdentityFromBytes(curveName, secret)
}

// IdentityFromBytes restores an identity from an Ed25519 seed or a secp256k1
// private scalar.
func IdentityFromBytes(curveName tss.CurveName, secret []byte) (*Identity, error) {
	curve, err := curves.ForName(curveName)
	if err != nil {
		return nil, err
	}
	var priv curves.Scalar
	switch curveName {
	case tss.Ed25519:
		if len(secret) != ed25519.SeedSize {
			return nil, errors.Wrapf(tss.ErrInvalidFormat, "ed25519 seed has %d bytes", len(secret))
		}
		h := sha512.Sum512(secret)
		s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
		if err != nil {
			return nil, errors.Wrap(tss.ErrInvalidFormat, err.Error())
		}
		priv, err = curve.ScalarFromBytes(s.Bytes())
		if err != nil {
			return nil, err
		}
	default:
		priv, err = curve.ScalarFromBytes(secret)
		if err != nil {
			return nil, err
		}
		if priv.IsZero() {
			return nil, errors.Wrap(tss.ErrInvalidFormat, "zero private key")
		}
	}
	return &Identity{
		curve:  curve,
		secret: append([]byte(nil), secret...),
		priv:   priv,
		pub:    curve.BasePoint().ScalarMult(priv).Bytes(),
	}, nil
}

func (id *Identity) Curve() curves.Curve {
	return id.curve
}

// PublicKey is the compressed point the coordinator registers for the member.
// For Ed25519 it equals the crypto/ed25519 public key of the seed.
func (id *Identity) PublicKey() []byte {
	return append([]byte(nil), id.pub...)
}

// Bytes returns the seed or private scalar accepted by IdentityFromBytes.
func (id *Identity) Bytes() []byte {
	return append([]byte(nil), id.secret...)
}

// Open decrypts an envelope addressed to this identity.
func (id *Identity) Open(env tss.Envelope) ([]byte, error) {
	return envelope.Open(id.curve, env, id.priv)
}

// SealToSelf encrypts payload to this identity's own public key.
func (id *Identity) SealToSelf(payload []byte, rand io.Reader) (tss.Envelope, error) {
	return envelope.Seal(id.curve, payload, id.pub, rand)
}
