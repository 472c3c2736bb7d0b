package txcodec

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Follows checks that tx moves a t-of-n group by exactly the step its type
// names.
func (tx *Transaction) Follows(t, n uint64) error {
	var ok bool
	switch tx.Type {
	case NExtension:
		ok = tx.T == t && tx.N == n+1
	case NReduction:
		ok = tx.T == t && tx.N+1 == n
	case TExtension:
		ok = tx.N == n && tx.T > t
	case TReduction:
		ok = tx.N == n && tx.T+1 == t
	}
	if !ok {
		return errors.Wrapf(tss.ErrInvalidFormat, "%s from %d-of-%d to %d-of-%d", tx.Type, t, n, tx.T, tx.N)
	}
	return nil
}

// Recipients checks tx against the current member list and returns the
// members of the resulting group. The subject of an nReduction must be a
// current member, the subject of an nExtension must not, and exactly the
// resulting members receive a block.
func (tx *Transaction) Recipients(members []tss.Member) ([]tss.Member, error) {
	out := append([]tss.Member(nil), members...)
	switch tx.Type {
	case NExtension:
		for _, m := range members {
			if m.Index == tx.Subject.Index || bytes.Equal(m.PublicKey, tx.Subject.PublicKey) {
				return nil, errors.Wrapf(tss.ErrInvalidFormat, "joining member %d is already in the group", tx.Subject.Index)
			}
		}
		out = append(out, tss.Member{Index: tx.Subject.Index, PublicKey: append([]byte(nil), tx.Subject.PublicKey...)})
	case NReduction:
		out = out[:0]
		found := false
		for _, m := range members {
			if m.Index != tx.Subject.Index {
				out = append(out, m)
				continue
			}
			if !bytes.Equal(m.PublicKey, tx.Subject.PublicKey) {
				return nil, errors.Wrapf(tss.ErrInvalidFormat, "leaving member %d has another key", m.Index)
			}
			found = true
		}
		if !found {
			return nil, errors.Wrapf(tss.ErrNotMember, "leaving member %d", tx.Subject.Index)
		}
	}

	if len(tx.Blocks) != len(out) {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "%d blocks for %d members", len(tx.Blocks), len(out))
	}
	for _, m := range out {
		if _, ok := tx.Block(m.Index); !ok {
			return nil, errors.Wrapf(tss.ErrInvalidFormat, "no block for member %d", m.Index)
		}
	}
	return out, nil
}
