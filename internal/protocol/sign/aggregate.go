package sign

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/polynomial"
	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// PartialSign computes this member's contribution s_i = k_i + c*x_i and
// returns it with the nonce point k_i*G.
func PartialSign(curve curves.Curve, share *keyshare.ThresholdKeyShare, session *tss.SigningSession, k curves.Scalar) (*tss.PartialSignature, error) {
	sch, err := schemeFor(curve)
	if err != nil {
		return nil, err
	}
	if err := sch.checkMessage(session.Message); err != nil {
		return nil, err
	}
	if !bytes.Equal(session.MasterPublicKey, share.MasterPublicKey) {
		return nil, errors.Wrap(tss.ErrNotMember, "session belongs to another group")
	}
	nonce, err := curve.PointFromBytes(session.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "group nonce")
	}
	master, err := curve.PointFromBytes(share.MasterPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "master public key")
	}

	x, k := sch.prepare(share.Share, k, master, nonce)
	c, err := sch.challenge(curve, sch.effectiveNonce(nonce), master, session.Message)
	if err != nil {
		return nil, err
	}
	s := k.Add(c.Mul(x))
	return &tss.PartialSignature{
		Index: share.Index,
		Bytes: encodePartial(curve.BasePoint().ScalarMult(k), s),
	}, nil
}

// Aggregate combines the session's partial signatures into a group signature.
// Every non-empty partial takes part. Fewer than the session threshold fails
// with InsufficientSignaturesError; anything that does not verify fails with
// ErrAggregationInvalid.
func Aggregate(curve curves.Curve, session *tss.SigningSession) (*Signature, error) {
	sch, err := schemeFor(curve)
	if err != nil {
		return nil, err
	}
	if err := sch.checkMessage(session.Message); err != nil {
		return nil, err
	}

	indices := make([]uint64, 0, len(session.Partials))
	for idx, p := range session.Partials {
		if len(p.Bytes) > 0 {
			indices = append(indices, idx)
		}
	}
	if uint64(len(indices)) < session.Threshold {
		return nil, &tss.InsufficientSignaturesError{Required: session.Threshold, Got: len(indices)}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	nonce, err := curve.PointFromBytes(session.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "group nonce")
	}
	if _, err := curve.PointFromBytes(session.MasterPublicKey); err != nil {
		return nil, errors.Wrap(err, "master public key")
	}
	lambdas, err := polynomial.AtZero(curve, indices)
	if err != nil {
		return nil, err
	}

	noncePoints := make([]curves.Point, len(indices))
	responses := make([]curves.Scalar, len(indices))
	for i, idx := range indices {
		r, s, err := decodePartial(curve, session.Partials[idx])
		if err != nil {
			return nil, tss.NewBlame(idx, "malformed partial signature", errors.Wrap(tss.ErrAggregationInvalid, err.Error()))
		}
		noncePoints[i], responses[i] = r, s
	}

	// Σ λ_i s_i and Σ λ_i R_i
	sum := curve.NewScalar()
	for _, v := range polynomial.Scale(responses, lambdas) {
		sum = sum.Add(v)
	}
	combined := curve.Identity()
	for i, r := range noncePoints {
		combined = combined.Add(r.ScalarMult(lambdas[i]))
	}

	effective := sch.effectiveNonce(nonce)
	if !combined.Equal(effective) {
		return nil, errors.Wrap(tss.ErrAggregationInvalid, "partial nonces do not combine to the group nonce")
	}
	sig := sch.encode(effective, sum)
	if err := sch.verify(session.MasterPublicKey, session.Message, sig); err != nil {
		return nil, err
	}
	return &Signature{
		Bytes:        sig,
		Recovery:     sch.recovery(nonce),
		Participants: indices,
	}, nil
}
