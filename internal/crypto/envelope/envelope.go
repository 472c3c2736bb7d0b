// Package envelope moves secret material to exactly one recipient.
//
// An envelope is E || AEAD(payload) where E = e*G is a fresh ephemeral point.
// The AEAD key is derived with HKDF-SHA256 from the shared point e*P, salted
// with E || P.
package envelope

import (
	"crypto/cipher"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

var kdfInfo = []byte("desig envelope v1")

// Overhead is the size an envelope adds to its payload on the given curve.
func Overhead(curve curves.Curve) int {
	return curve.PointSize() + chacha20poly1305.Overhead
}

// Seal encrypts payload to the holder of recipient's private key.
func Seal(curve curves.Curve, payload []byte, recipient []byte, rand io.Reader) (tss.Envelope, error) {
	pub, err := curve.PointFromBytes(recipient)
	if err != nil {
		return nil, errors.Wrap(err, "recipient public key")
	}
	if err := curves.ValidatePublicKey(pub); err != nil {
		return nil, errors.WithMessage(err, "recipient public key")
	}
	e, err := curve.RandomScalar(rand)
	if err != nil {
		return nil, err
	}
	ephemeral := curve.BasePoint().ScalarMult(e).Bytes()
	aead, err := newAEAD(pub.ScalarMult(e), ephemeral, pub.Bytes())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(ephemeral)+len(payload)+aead.Overhead())
	out = append(out, ephemeral...)
	// fresh key per envelope, zero nonce
	out = aead.Seal(out, make([]byte, aead.NonceSize()), payload, ephemeral)
	return out, nil
}

// Open decrypts an envelope with the recipient's private scalar.
func Open(curve curves.Curve, env tss.Envelope, priv curves.Scalar) ([]byte, error) {
	size := curve.PointSize()
	if len(env) < Overhead(curve) {
		return nil, errors.Wrapf(tss.ErrDecryptionFailed, "envelope too short: %d bytes", len(env))
	}
	ephemeral := env[:size]
	e, err := curve.PointFromBytes(ephemeral)
	if err != nil || e.IsIdentity() {
		return nil, errors.Wrap(tss.ErrDecryptionFailed, "malformed ephemeral point")
	}
	recipient := curve.BasePoint().ScalarMult(priv).Bytes()
	aead, err := newAEAD(e.ScalarMult(priv), ephemeral, recipient)
	if err != nil {
		return nil, err
	}
	payload, err := aead.Open(nil, make([]byte, aead.NonceSize()), env[size:], ephemeral)
	if err != nil {
		return nil, errors.Wrap(tss.ErrDecryptionFailed, err.Error())
	}
	return payload, nil
}

func newAEAD(shared curves.Point, ephemeral, recipient []byte) (cipher.AEAD, error) {
	salt := make([]byte, 0, len(ephemeral)+len(recipient))
	salt = append(salt, ephemeral...)
	salt = append(salt, recipient...)

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared.Bytes(), salt, kdfInfo), key); err != nil {
		return nil, errors.Wrap(err, "derive envelope key")
	}
	return chacha20poly1305.New(key)
}
