package sign

import (
	"io"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/internal/crypto/polynomial"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Deal fixes the group nonce R = k(0)*G of a new session and seals each
// member's nonce share k(index) to its identity key. k has degree t-1, so any
// t members can sign.
func Deal(curve curves.Curve, threshold uint64, members []tss.Member, rand io.Reader) (*Dealt, error) {
	if threshold == 0 || uint64(len(members)) < threshold {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "cannot deal threshold %d to %d members", threshold, len(members))
	}
	k, err := polynomial.New(curve, int(threshold)-1, nil, rand)
	if err != nil {
		return nil, err
	}
	d := &Dealt{
		Nonce:    k.Commit().Bytes(),
		Blinding: make(map[uint64]tss.Envelope, len(members)),
	}
	for _, m := range members {
		if _, dup := d.Blinding[m.Index]; dup {
			return nil, errors.Wrapf(tss.ErrInvalidParameters, "duplicate member index %d", m.Index)
		}
		x, err := curves.IndexScalar(curve, m.Index)
		if err != nil {
			return nil, err
		}
		env, err := envelope.Seal(curve, envelope.EncodeBlinding(k.Evaluate(x).Bytes()), m.PublicKey, rand)
		if err != nil {
			return nil, errors.Wrapf(err, "seal nonce share for member %d", m.Index)
		}
		d.Blinding[m.Index] = env
	}
	return d, nil
}
