package reshare

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	logging "github.com/ipfs/go-log"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/internal/crypto/polynomial"
	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

var log = logging.Logger("tss/reshare")

// Resharer is one member's side of group reconfiguration.
type Resharer struct {
	store    tss.TransactionStore
	identity *keyshare.Identity
	curve    curves.Curve
	opts     Options
}

func NewResharer(store tss.TransactionStore, identity *keyshare.Identity, opts Options) *Resharer {
	return &Resharer{
		store:    store,
		identity: identity,
		curve:    identity.Curve(),
		opts:     opts,
	}
}

// syncState tracks one pass over the transaction chain.
type syncState struct {
	member  string
	from    tss.GroupID
	current tss.GroupID
	applied int
}

func (s *syncState) Details() string {
	return fmt.Sprintf("Resharing member %s from group %s at %s (%d applied)", s.member, s.from, s.current, s.applied)
}

// Approve counter-signs a transaction that starts from the member's current
// group id and moves its parameters and member list by one step. For
// nExtension and tReduction the approval carries the member's share masked
// with its dealt blinding value.
func (r *Resharer) Approve(ctx context.Context, share *keyshare.ThresholdKeyShare, id tss.GroupID) (*tss.Approval, error) {
	tx, err := r.transaction(ctx, share.MasterPublicKey, id)
	if err != nil {
		return nil, err
	}
	if tx.RefGroupID != share.GroupID {
		return nil, errors.Wrapf(tss.ErrCorruptedChain,
			"transaction %s starts from group %s, member is at %s", id, tx.RefGroupID, share.GroupID)
	}
	if err := tx.Follows(share.T, share.N); err != nil {
		return nil, err
	}
	members, err := r.store.Members(ctx, share.MasterPublicKey)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Recipients(members); err != nil {
		return nil, err
	}
	approval := &tss.Approval{TransactionID: id, Index: share.Index}
	if tx.Type.NeedsCommitment() {
		block, ok := tx.Block(share.Index)
		if !ok {
			return nil, errors.Wrapf(tss.ErrNotMember, "no block for member %d", share.Index)
		}
		mask, err := r.openBlinding(block)
		if err != nil {
			return nil, err
		}
		approval.Commitment = share.Share.Add(mask).Bytes()
	}
	if err := r.store.SubmitApproval(ctx, share.MasterPublicKey, *approval); err != nil {
		return nil, err
	}
	log.Debugf("member %s approved %s %s", share.MemberID(), tx.Type, id)
	return approval, nil
}

// Enroll derives the first share of the member added by an executed
// nExtension and publishes it as the member's activation record.
//
// The approvers' commitments z_j = f(x_j) + m(x_j) lie on a polynomial of
// degree t-1, so t of them give f(x)+m(x) at the new index; removing the
// member's own mask share and adding its zero-share yields its share.
func (r *Resharer) Enroll(ctx context.Context, master []byte, id tss.GroupID) (*keyshare.ThresholdKeyShare, error) {
	rec, tx, err := r.record(ctx, master, id)
	if err != nil {
		return nil, err
	}
	if !rec.Approved {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "transaction %s is not executed", id)
	}
	if tx.Type != txcodec.NExtension {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "cannot enroll through %s", tx.Type)
	}
	if !bytes.Equal(tx.Subject.PublicKey, r.identity.PublicKey()) {
		return nil, errors.Wrap(tss.ErrNotMember, "transaction adds a different member")
	}
	index := tx.Subject.Index
	block, ok := tx.Block(index)
	if !ok {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "no block for joining member %d", index)
	}
	mask, err := r.openBlinding(block)
	if err != nil {
		return nil, err
	}
	zero, err := r.openZeroShare(block, tx)
	if err != nil {
		return nil, err
	}

	indices, ys, err := r.commitments(ctx, master, id, tx.T)
	if err != nil {
		return nil, err
	}
	x, err := curves.IndexScalar(r.curve, index)
	if err != nil {
		return nil, err
	}
	masked, err := polynomial.Interpolate(r.curve, indices, ys, x)
	if err != nil {
		return nil, err
	}

	share := &keyshare.ThresholdKeyShare{
		Curve:           r.curve.Name(),
		GroupID:         id,
		MasterPublicKey: append([]byte(nil), master...),
		Index:           index,
		T:               tx.T,
		N:               tx.N,
		Share:           masked.Sub(mask).Add(zero),
	}
	if err := r.publish(ctx, share); err != nil {
		return nil, err
	}
	log.Infof("member %s enrolled at group %s", share.MemberID(), id)
	return share, nil
}

// Sync applies every executed transaction the member has not seen, in chain
// order, and re-publishes the resulting share. The guard is held for the
// whole pass; nothing is committed unless every step succeeds.
func (r *Resharer) Sync(ctx context.Context, guard *keyshare.Guard) (int, error) {
	applied := 0
	err := guard.Update(func(share *keyshare.ThresholdKeyShare) error {
		st := &syncState{member: share.MemberID(), from: share.GroupID, current: share.GroupID}

		group, err := r.store.Group(ctx, share.MasterPublicKey)
		if err != nil {
			return err
		}
		if group.GroupID == share.GroupID {
			log.Debugf("%s: up to date", st.Details())
			return nil
		}

		records, err := r.approved(ctx, share.MasterPublicKey)
		if err != nil {
			return err
		}
		start := -1
		for i, rec := range records {
			ref, err := txcodec.RefGroupID(rec.Raw)
			if err == nil && ref == share.GroupID {
				start = i
				break
			}
		}
		if start < 0 {
			return errors.Wrapf(tss.ErrCorruptedChain, "no executed transaction follows group %s", share.GroupID)
		}

		for _, rec := range records[start:] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.apply(ctx, share, rec); err != nil {
				log.Errorf("%s: transaction %s: %v", st.Details(), rec.ID, err)
				return &tss.ReshareFailedError{TransactionID: rec.ID, Err: err}
			}
			st.applied++
			st.current = share.GroupID
			log.Infof("%s: applied %s", st.Details(), rec.ID)
		}
		if share.GroupID != group.GroupID {
			return errors.Wrapf(tss.ErrCorruptedChain, "chain ends at %s but group is at %s", share.GroupID, group.GroupID)
		}
		if err := r.publish(ctx, share); err != nil {
			return &tss.ReshareFailedError{TransactionID: share.GroupID, Err: err}
		}
		applied = st.applied
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// apply proactivates share with one transaction.
func (r *Resharer) apply(ctx context.Context, share *keyshare.ThresholdKeyShare, rec tss.TransactionRecord) error {
	if txcodec.TransactionID(rec.Raw) != rec.ID {
		return errors.Wrap(tss.ErrInvalidFormat, "transaction id does not match its buffer")
	}
	tx, err := r.opts.Layout.Decode(rec.Raw)
	if err != nil {
		return err
	}
	if tx.RefGroupID != share.GroupID {
		return errors.Wrapf(tss.ErrCorruptedChain, "transaction starts from %s, share is at %s", tx.RefGroupID, share.GroupID)
	}
	if err := tx.Follows(share.T, share.N); err != nil {
		return err
	}
	if tx.Type == txcodec.NReduction && tx.Subject.Index == share.Index {
		return errors.Wrap(tss.ErrNotMember, "member was removed from the group")
	}
	block, ok := tx.Block(share.Index)
	if !ok {
		return errors.Wrapf(tss.ErrNotMember, "no block for member %d", share.Index)
	}
	delta, err := r.openZeroShare(block, tx)
	if err != nil {
		return err
	}

	if tx.Type == txcodec.TReduction {
		// drop the top coefficient a_{t-1} of the old polynomial, revealed as
		// the leading coefficient of the t committed masked shares
		indices, ys, err := r.commitments(ctx, share.MasterPublicKey, rec.ID, share.T)
		if err != nil {
			return err
		}
		lead, err := polynomial.LeadingCoefficient(r.curve, indices, ys)
		if err != nil {
			return err
		}
		x, err := curves.IndexScalar(r.curve, share.Index)
		if err != nil {
			return err
		}
		delta = delta.Sub(lead.Mul(polynomial.Power(r.curve, x, tx.T)))
	}

	return share.Proactivate(keyshare.CompressZeroShare(share.Index, tx.T, tx.N, rec.ID, delta))
}

func (r *Resharer) openBlinding(block txcodec.Block) (curves.Scalar, error) {
	if len(block.Blinding) == 0 {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "no blinding envelope for member %d", block.Index)
	}
	payload, err := r.identity.Open(block.Blinding)
	if err != nil {
		return nil, err
	}
	raw, err := envelope.DecodeBlinding(payload)
	if err != nil {
		return nil, err
	}
	return r.curve.ScalarFromBytes(raw)
}

// openZeroShare decrypts a zero-share and checks it is bound to tx.
func (r *Resharer) openZeroShare(block txcodec.Block, tx *txcodec.Transaction) (curves.Scalar, error) {
	payload, err := r.identity.Open(block.ZeroShare)
	if err != nil {
		return nil, err
	}
	z, err := envelope.DecodeZeroShare(payload)
	if err != nil {
		return nil, err
	}
	if z.T != tx.T || z.N != tx.N || z.Ref != tx.RefGroupID {
		return nil, errors.Wrapf(tss.ErrInvalidFormat,
			"zero-share bound to %d-of-%d after %s, transaction says %d-of-%d after %s",
			z.T, z.N, z.Ref, tx.T, tx.N, tx.RefGroupID)
	}
	return r.curve.ScalarFromBytes(z.Value)
}

// commitments returns the first need committed masked shares by index.
func (r *Resharer) commitments(ctx context.Context, master []byte, id tss.GroupID, need uint64) ([]uint64, []curves.Scalar, error) {
	approvals, err := r.store.Approvals(ctx, master, id)
	if err != nil {
		return nil, nil, err
	}
	withCommitment := make([]tss.Approval, 0, len(approvals))
	for _, a := range approvals {
		if len(a.Commitment) > 0 {
			withCommitment = append(withCommitment, a)
		}
	}
	if uint64(len(withCommitment)) < need {
		return nil, nil, &tss.InsufficientSignaturesError{Required: need, Got: len(withCommitment)}
	}
	sort.Slice(withCommitment, func(i, j int) bool { return withCommitment[i].Index < withCommitment[j].Index })

	indices := make([]uint64, need)
	ys := make([]curves.Scalar, need)
	for i, a := range withCommitment[:need] {
		y, err := r.curve.ScalarFromBytes(a.Commitment)
		if err != nil {
			return nil, nil, tss.NewBlame(a.Index, "malformed commitment", err)
		}
		indices[i], ys[i] = a.Index, y
	}
	return indices, ys, nil
}

func (r *Resharer) transaction(ctx context.Context, master []byte, id tss.GroupID) (*txcodec.Transaction, error) {
	_, tx, err := r.record(ctx, master, id)
	return tx, err
}

func (r *Resharer) record(ctx context.Context, master []byte, id tss.GroupID) (*tss.TransactionRecord, *txcodec.Transaction, error) {
	rec, err := r.store.Transaction(ctx, master, id)
	if err != nil {
		return nil, nil, err
	}
	if txcodec.TransactionID(rec.Raw) != id {
		return nil, nil, errors.Wrap(tss.ErrInvalidFormat, "transaction id does not match its buffer")
	}
	tx, err := r.opts.Layout.Decode(rec.Raw)
	if err != nil {
		return nil, nil, err
	}
	return rec, tx, nil
}

func (r *Resharer) approved(ctx context.Context, master []byte) ([]tss.TransactionRecord, error) {
	var out []tss.TransactionRecord
	for offset := 0; ; offset += r.opts.PageSize {
		page, err := r.store.ApprovedTransactions(ctx, master, offset, r.opts.PageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < r.opts.PageSize {
			return out, nil
		}
	}
}

// publish seals the share to the member's own key and stores it as the
// activation record.
func (r *Resharer) publish(ctx context.Context, share *keyshare.ThresholdKeyShare) error {
	env, err := keyshare.Seal(share, r.identity, r.opts.Rand)
	if err != nil {
		return err
	}
	if err := r.store.Activate(ctx, share.MasterPublicKey, share.Index, env); err != nil {
		return err
	}
	log.Debugf("member %s re-published share at %s", share.MemberID(), share.GroupID)
	return nil
}
