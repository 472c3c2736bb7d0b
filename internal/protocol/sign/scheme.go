package sign

import (
	"crypto/ed25519"
	"crypto/sha512"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// scheme is the per-curve signature equation s = k + c*x. Both variants are
// linear in the secret, so partials combine with Lagrange weights.
type scheme interface {
	checkMessage(msg []byte) error
	// prepare adjusts the secret share and nonce share to the signing
	// convention of the group key and group nonce.
	prepare(x, k curves.Scalar, master, nonce curves.Point) (curves.Scalar, curves.Scalar)
	// effectiveNonce is the nonce point the final signature commits to.
	effectiveNonce(nonce curves.Point) curves.Point
	challenge(curve curves.Curve, nonce, master curves.Point, msg []byte) (curves.Scalar, error)
	encode(nonce curves.Point, s curves.Scalar) []byte
	recovery(nonce curves.Point) byte
	verify(master, msg, sig []byte) error
}

func schemeFor(curve curves.Curve) (scheme, error) {
	switch curve.Name() {
	case tss.Ed25519:
		return ed25519Scheme{}, nil
	case tss.Secp256k1:
		return bip340Scheme{}, nil
	default:
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "no signature scheme for %s", curve.Name())
	}
}

// Verify checks a group signature with the curve's standard verifier.
func Verify(curve curves.Curve, master, msg, sig []byte) error {
	sch, err := schemeFor(curve)
	if err != nil {
		return err
	}
	if err := sch.checkMessage(msg); err != nil {
		return err
	}
	return sch.verify(master, msg, sig)
}

// ed25519Scheme is RFC 8032 Ed25519 with c = SHA-512(R || A || M).
type ed25519Scheme struct{}

func (ed25519Scheme) checkMessage([]byte) error { return nil }

func (ed25519Scheme) prepare(x, k curves.Scalar, _, _ curves.Point) (curves.Scalar, curves.Scalar) {
	return x, k
}

func (ed25519Scheme) effectiveNonce(nonce curves.Point) curves.Point { return nonce }

func (ed25519Scheme) challenge(curve curves.Curve, nonce, master curves.Point, msg []byte) (curves.Scalar, error) {
	h := sha512.New()
	h.Write(nonce.Bytes())
	h.Write(master.Bytes())
	h.Write(msg)
	return curve.ScalarFromHash(h.Sum(nil))
}

func (ed25519Scheme) encode(nonce curves.Point, s curves.Scalar) []byte {
	return append(append([]byte(nil), nonce.Bytes()...), s.Bytes()...)
}

func (ed25519Scheme) recovery(curves.Point) byte { return 0 }

func (ed25519Scheme) verify(master, msg, sig []byte) error {
	if len(master) != ed25519.PublicKeySize || !ed25519.Verify(master, msg, sig) {
		return errors.Wrap(tss.ErrAggregationInvalid, "ed25519 verification failed")
	}
	return nil
}

// bip340Scheme is BIP-340 Schnorr over secp256k1. Keys and nonces are used
// in their even-y form, so shares of an odd-y key or nonce are negated.
type bip340Scheme struct{}

func (bip340Scheme) checkMessage(msg []byte) error {
	if len(msg) != chainhash.HashSize {
		return errors.Wrapf(tss.ErrInvalidFormat, "secp256k1 signs 32-byte digests, got %d bytes", len(msg))
	}
	return nil
}

func (bip340Scheme) prepare(x, k curves.Scalar, master, nonce curves.Point) (curves.Scalar, curves.Scalar) {
	if hasOddY(master) {
		x = x.Neg()
	}
	if hasOddY(nonce) {
		k = k.Neg()
	}
	return x, k
}

func (bip340Scheme) effectiveNonce(nonce curves.Point) curves.Point {
	if hasOddY(nonce) {
		return nonce.Neg()
	}
	return nonce
}

func (bip340Scheme) challenge(curve curves.Curve, nonce, master curves.Point, msg []byte) (curves.Scalar, error) {
	h := chainhash.TaggedHash(chainhash.TagBIP0340Challenge, xOnly(nonce), xOnly(master), msg)
	return curve.ScalarFromHash(h[:])
}

func (bip340Scheme) encode(nonce curves.Point, s curves.Scalar) []byte {
	return append(xOnly(nonce), s.Bytes()...)
}

func (bip340Scheme) recovery(nonce curves.Point) byte {
	if hasOddY(nonce) {
		return 1
	}
	return 0
}

func (bip340Scheme) verify(master, msg, sig []byte) error {
	if len(master) != 33 {
		return errors.Wrapf(tss.ErrInvalidFormat, "master key of %d bytes", len(master))
	}
	pub, err := schnorr.ParsePubKey(master[1:])
	if err != nil {
		return errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return errors.Wrap(tss.ErrAggregationInvalid, err.Error())
	}
	if !parsed.Verify(msg, pub) {
		return errors.Wrap(tss.ErrAggregationInvalid, "bip340 verification failed")
	}
	return nil
}

func hasOddY(p curves.Point) bool {
	sp, ok := p.(*curves.Secp256k1Point)
	return ok && sp.HasOddY()
}

func xOnly(p curves.Point) []byte {
	return append([]byte(nil), p.Bytes()[1:]...)
}
