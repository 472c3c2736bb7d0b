package reshare

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/internal/crypto/polynomial"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Dealer builds reconfiguration transactions. It samples the zero-sharing
// and, for nExtension and tReduction, the masking polynomial whose shares the
// approvers add to their own shares as commitments.
type Dealer struct {
	curve  curves.Curve
	layout txcodec.Layout
	rand   io.Reader
}

func NewDealer(curve curves.Curve, layout txcodec.Layout, rand io.Reader) *Dealer {
	return &Dealer{curve: curve, layout: layout, rand: rand}
}

// NewTransaction deals p and returns the encoded buffer with its decoded form.
func (d *Dealer) NewTransaction(p Proposal) ([]byte, *txcodec.Transaction, error) {
	tr, subject, err := d.plan(p)
	if err != nil {
		return nil, nil, err
	}

	zero, err := polynomial.NewZero(d.curve, int(tr.t)-1, d.rand)
	if err != nil {
		return nil, nil, err
	}
	var mask *polynomial.Polynomial
	if tr.blindingDegree >= 0 {
		mask, err = polynomial.New(d.curve, tr.blindingDegree, nil, d.rand)
		if err != nil {
			return nil, nil, err
		}
	}

	tx := &txcodec.Transaction{
		Type:       p.Type,
		RefGroupID: p.Group.GroupID,
		T:          tr.t,
		N:          tr.n,
		Subject:    subject,
	}
	for _, m := range tr.recipients {
		block := txcodec.Block{Index: m.Index}
		payload := envelope.EncodeZeroShare(envelope.ZeroShare{
			Value: zero.EvaluateAt(m.Index).Bytes(),
			T:     tr.t,
			N:     tr.n,
			Ref:   p.Group.GroupID,
		})
		if block.ZeroShare, err = envelope.Seal(d.curve, payload, m.PublicKey, d.rand); err != nil {
			return nil, nil, errors.Wrapf(err, "seal zero-share for member %d", m.Index)
		}
		if mask != nil {
			payload := envelope.EncodeBlinding(mask.EvaluateAt(m.Index).Bytes())
			if block.Blinding, err = envelope.Seal(d.curve, payload, m.PublicKey, d.rand); err != nil {
				return nil, nil, errors.Wrapf(err, "seal blinding for member %d", m.Index)
			}
		}
		tx.Blocks = append(tx.Blocks, block)
	}

	raw, err := d.layout.Encode(tx)
	if err != nil {
		return nil, nil, err
	}
	return raw, tx, nil
}

// plan validates the proposal and works out the new parameters and recipients.
func (d *Dealer) plan(p Proposal) (*transition, *txcodec.Subject, error) {
	var result *multierror.Error
	if err := p.Group.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if p.Group.Curve != d.curve.Name() || d.layout.Curve != d.curve.Name() {
		result = multierror.Append(result, fmt.Errorf("group on %s dealt on %s", p.Group.Curve, d.curve.Name()))
	}
	if uint64(len(p.Members)) != p.Group.N {
		result = multierror.Append(result, fmt.Errorf("%d members for group of %d", len(p.Members), p.Group.N))
	}
	seen := make(map[uint64]struct{}, len(p.Members))
	for _, m := range p.Members {
		if _, dup := seen[m.Index]; dup || m.Index == 0 {
			result = multierror.Append(result, fmt.Errorf("invalid member index %d", m.Index))
		}
		seen[m.Index] = struct{}{}
	}

	t, n := p.Group.T, p.Group.N
	tr := &transition{t: t, n: n, recipients: p.Members, blindingDegree: -1}
	var subject *txcodec.Subject

	switch p.Type {
	case txcodec.NExtension:
		if len(p.Joining) == 0 {
			result = multierror.Append(result, errors.New("nExtension without joining key"))
			break
		}
		if _, exists := tss.MemberByKey(p.Members, p.Joining); exists {
			result = multierror.Append(result, errors.New("joining key already belongs to a member"))
			break
		}
		index, err := d.freshIndex(seen)
		if err != nil {
			return nil, nil, err
		}
		joining := tss.Member{Index: index, PublicKey: p.Joining}
		subject = &txcodec.Subject{Index: index, PublicKey: p.Joining}
		tr.n = n + 1
		tr.recipients = append(append([]tss.Member(nil), p.Members...), joining)
		tr.blindingDegree = int(t) - 1

	case txcodec.NReduction:
		if _, ok := seen[p.Leaving]; !ok {
			result = multierror.Append(result, fmt.Errorf("leaving index %d is not a member", p.Leaving))
			break
		}
		if n-1 < t {
			result = multierror.Append(result, fmt.Errorf("removing a member leaves %d below threshold %d", n-1, t))
		}
		tr.n = n - 1
		tr.recipients = nil
		for _, m := range p.Members {
			if m.Index == p.Leaving {
				subject = &txcodec.Subject{Index: m.Index, PublicKey: m.PublicKey}
				continue
			}
			tr.recipients = append(tr.recipients, m)
		}

	case txcodec.TExtension:
		if p.T <= t || p.T > n {
			result = multierror.Append(result, fmt.Errorf("tExtension from %d to %d of %d", t, p.T, n))
		}
		tr.t = p.T

	case txcodec.TReduction:
		if t < 2 || p.T != t-1 {
			result = multierror.Append(result, fmt.Errorf("tReduction from %d to %d", t, p.T))
		}
		tr.t = p.T
		tr.blindingDegree = int(t) - 2

	default:
		return nil, nil, errors.Wrapf(tss.ErrUnknownTransactionType, "type %d", int(p.Type))
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, nil, errors.Wrap(tss.ErrInvalidParameters, err.Error())
	}
	return tr, subject, nil
}

func (d *Dealer) freshIndex(taken map[uint64]struct{}) (uint64, error) {
	var b [8]byte
	for {
		if _, err := io.ReadFull(d.rand, b[:]); err != nil {
			return 0, errors.Wrap(err, "read randomness")
		}
		// indices stay within 63 bits
		index := binary.LittleEndian.Uint64(b[:]) >> 1
		if _, dup := taken[index]; index != 0 && !dup {
			return index, nil
		}
	}
}
