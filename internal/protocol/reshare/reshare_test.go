package reshare

import (
	"bytes"
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/polynomial"
	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// memChain is a single-group TransactionStore.
type memChain struct {
	mu          sync.Mutex
	group       tss.GroupDescriptor
	members     []tss.Member
	txs         map[tss.GroupID]*tss.TransactionRecord
	order       []tss.GroupID
	approvals   map[tss.GroupID][]tss.Approval
	activations map[uint64]tss.Envelope
	pageCalls   int
}

func (c *memChain) Group(context.Context, []byte) (*tss.GroupDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.group
	return &g, nil
}

func (c *memChain) Members(context.Context, []byte) ([]tss.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tss.Member(nil), c.members...), nil
}

func (c *memChain) Transaction(_ context.Context, _ []byte, id tss.GroupID) (*tss.TransactionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.txs[id]
	if !ok {
		return nil, errors.Wrapf(tss.ErrNotFound, "transaction %s", id)
	}
	cp := *rec
	return &cp, nil
}

func (c *memChain) ApprovedTransactions(_ context.Context, _ []byte, offset, limit int) ([]tss.TransactionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageCalls++
	var out []tss.TransactionRecord
	for _, id := range c.order {
		if c.txs[id].Approved {
			out = append(out, *c.txs[id])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *memChain) Approvals(_ context.Context, _ []byte, id tss.GroupID) ([]tss.Approval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tss.Approval(nil), c.approvals[id]...), nil
}

func (c *memChain) SubmitApproval(_ context.Context, _ []byte, a tss.Approval) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.txs[a.TransactionID]; !ok {
		return errors.Wrapf(tss.ErrNotFound, "transaction %s", a.TransactionID)
	}
	c.approvals[a.TransactionID] = append(c.approvals[a.TransactionID], a)
	return nil
}

func (c *memChain) Activate(_ context.Context, _ []byte, index uint64, env tss.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activations[index] = env
	return nil
}

func (c *memChain) add(raw []byte) tss.GroupID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := txcodec.TransactionID(raw)
	c.txs[id] = &tss.TransactionRecord{ID: id, Raw: raw, CreatedAt: time.Now()}
	c.order = append(c.order, id)
	return id
}

// execute moves the group to tx the way the coordinator does.
func (c *memChain) execute(t *testing.T, id tss.GroupID, tx *txcodec.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Equal(t, c.group.GroupID, tx.RefGroupID)
	c.txs[id].Approved = true
	c.group.GroupID, c.group.T, c.group.N = id, tx.T, tx.N
	switch tx.Type {
	case txcodec.NExtension:
		c.members = append(c.members, tss.Member{Index: tx.Subject.Index, PublicKey: tx.Subject.PublicKey})
	case txcodec.NReduction:
		kept := c.members[:0]
		for _, m := range c.members {
			if m.Index != tx.Subject.Index {
				kept = append(kept, m)
			}
		}
		c.members = kept
	}
}

type party struct {
	identity *keyshare.Identity
	guard    *keyshare.Guard
	resharer *Resharer
}

type fixture struct {
	curve   curves.Curve
	layout  txcodec.Layout
	secret  curves.Scalar
	chain   *memChain
	dealer  *Dealer
	parties []*party
}

func newFixture(t *testing.T, name tss.CurveName, threshold uint64, indices ...uint64) *fixture {
	curve, err := curves.ForName(name)
	require.NoError(t, err)
	poly, err := polynomial.New(curve, int(threshold)-1, nil, rand.Reader)
	require.NoError(t, err)
	master := poly.Commit().Bytes()
	gid := tss.GroupID{0xaa, 1}

	f := &fixture{
		curve:  curve,
		layout: txcodec.LayoutV1(curve),
		secret: poly.Coefficients[0],
		chain: &memChain{
			group:       tss.GroupDescriptor{GroupID: gid, Curve: name, T: threshold, N: uint64(len(indices)), MasterPublicKey: master},
			txs:         map[tss.GroupID]*tss.TransactionRecord{},
			approvals:   map[tss.GroupID][]tss.Approval{},
			activations: map[uint64]tss.Envelope{},
		},
	}
	f.dealer = NewDealer(curve, f.layout, rand.Reader)
	for _, idx := range indices {
		id, err := keyshare.NewIdentity(name, rand.Reader)
		require.NoError(t, err)
		f.chain.members = append(f.chain.members, tss.Member{Index: idx, PublicKey: id.PublicKey()})
		f.parties = append(f.parties, &party{
			identity: id,
			guard: keyshare.NewGuard(&keyshare.ThresholdKeyShare{
				Curve:           name,
				GroupID:         gid,
				MasterPublicKey: master,
				Index:           idx,
				T:               threshold,
				N:               uint64(len(indices)),
				Share:           poly.EvaluateAt(idx),
			}),
			resharer: f.resharer(id),
		})
	}
	return f
}

func (f *fixture) resharer(id *keyshare.Identity) *Resharer {
	return NewResharer(f.chain, id, Options{Layout: f.layout, PageSize: 2, Rand: rand.Reader})
}

func (f *fixture) propose(t *testing.T, p Proposal) (tss.GroupID, *txcodec.Transaction) {
	p.Group = f.chain.group
	p.Members = append([]tss.Member(nil), f.chain.members...)
	raw, tx, err := f.dealer.NewTransaction(p)
	require.NoError(t, err)
	return f.chain.add(raw), tx
}

func (f *fixture) approveAll(t *testing.T, id tss.GroupID, parties ...*party) {
	for _, p := range parties {
		_, err := p.resharer.Approve(context.Background(), p.guard.Snapshot(), id)
		require.NoError(t, err)
	}
}

func (f *fixture) syncAll(t *testing.T, parties ...*party) {
	for _, p := range parties {
		_, err := p.resharer.Sync(context.Background(), p.guard)
		require.NoError(t, err)
	}
}

// reconstruct interpolates the secret from the given parties' shares.
func (f *fixture) reconstruct(t *testing.T, parties ...*party) curves.Scalar {
	indices := make([]uint64, len(parties))
	shares := make([]curves.Scalar, len(parties))
	for i, p := range parties {
		s := p.guard.Snapshot()
		indices[i], shares[i] = s.Index, s.Share
	}
	secret, err := polynomial.Reconstruct(f.curve, indices, shares)
	require.NoError(t, err)
	return secret
}

func TestNExtension(t *testing.T) {
	for _, name := range []tss.CurveName{tss.Ed25519, tss.Secp256k1} {
		t.Run(string(name), func(t *testing.T) {
			f := newFixture(t, name, 2, 3, 7, 11)
			ctx := context.Background()
			joiner, err := keyshare.NewIdentity(name, rand.Reader)
			require.NoError(t, err)

			id, tx := f.propose(t, Proposal{Type: txcodec.NExtension, Joining: joiner.PublicKey()})
			require.NotNil(t, tx.Subject)
			assert.Len(t, tx.Blocks, 4)

			f.approveAll(t, id, f.parties[2], f.parties[0])
			f.chain.execute(t, id, tx)

			r := f.resharer(joiner)
			share, err := r.Enroll(ctx, f.chain.group.MasterPublicKey, id)
			require.NoError(t, err)
			assert.Equal(t, tx.Subject.Index, share.Index)
			assert.Equal(t, id, share.GroupID)
			assert.EqualValues(t, 2, share.T)
			assert.EqualValues(t, 4, share.N)
			assert.Contains(t, f.chain.activations, share.Index)

			before := f.parties[0].guard.Snapshot()
			f.syncAll(t, f.parties...)
			after := f.parties[0].guard.Snapshot()
			assert.Equal(t, id, after.GroupID)
			assert.False(t, before.Share.Equal(after.Share), "shares are re-randomised")

			newcomer := &party{identity: joiner, guard: keyshare.NewGuard(share), resharer: r}
			all := append(append([]*party(nil), f.parties...), newcomer)
			for i := range all {
				for j := i + 1; j < len(all); j++ {
					assert.True(t, f.secret.Equal(f.reconstruct(t, all[i], all[j])), "pair %d,%d", i, j)
				}
			}

			// the activation record opens to the current share
			restored, err := keyshare.FromEnvelope(f.chain.activations[share.Index], joiner)
			require.NoError(t, err)
			assert.True(t, restored.Equal(share))
		})
	}
}

func TestTReduction(t *testing.T) {
	for _, name := range []tss.CurveName{tss.Ed25519, tss.Secp256k1} {
		t.Run(string(name), func(t *testing.T) {
			f := newFixture(t, name, 3, 1, 2, 3, 4)
			id, tx := f.propose(t, Proposal{Type: txcodec.TReduction, T: 2})
			f.approveAll(t, id, f.parties[3], f.parties[1], f.parties[0])
			f.chain.execute(t, id, tx)
			f.syncAll(t, f.parties...)

			for _, p := range f.parties {
				s := p.guard.Snapshot()
				assert.EqualValues(t, 2, s.T)
				assert.EqualValues(t, 4, s.N)
			}
			for i := range f.parties {
				for j := i + 1; j < len(f.parties); j++ {
					assert.True(t, f.secret.Equal(f.reconstruct(t, f.parties[i], f.parties[j])), "pair %d,%d", i, j)
				}
			}
		})
	}
}

func TestTReductionNeedsCommitments(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 3, 1, 2, 3)
	id, tx := f.propose(t, Proposal{Type: txcodec.TReduction, T: 2})
	f.approveAll(t, id, f.parties[0], f.parties[1])
	f.chain.execute(t, id, tx)

	before := f.parties[2].guard.Snapshot()
	_, err := f.parties[2].resharer.Sync(context.Background(), f.parties[2].guard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tss.ErrReshareFailed))
	assert.True(t, errors.Is(err, tss.ErrInsufficientSignatures))
	assert.True(t, before.Equal(f.parties[2].guard.Snapshot()))
}

func TestNReduction(t *testing.T) {
	f := newFixture(t, tss.Secp256k1, 2, 1, 2, 3)
	leaving := f.parties[1]
	id, tx := f.propose(t, Proposal{Type: txcodec.NReduction, Leaving: 2})
	assert.Len(t, tx.Blocks, 2)
	f.approveAll(t, id, f.parties[0], f.parties[2])
	f.chain.execute(t, id, tx)

	f.syncAll(t, f.parties[0], f.parties[2])
	assert.True(t, f.secret.Equal(f.reconstruct(t, f.parties[0], f.parties[2])))
	assert.EqualValues(t, 2, f.parties[0].guard.Snapshot().N)

	before := leaving.guard.Snapshot()
	_, err := leaving.resharer.Sync(context.Background(), leaving.guard)
	var failed *tss.ReshareFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, id, failed.TransactionID)
	assert.True(t, errors.Is(err, tss.ErrNotMember))
	assert.True(t, before.Equal(leaving.guard.Snapshot()))
}

func TestTExtension(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	id, tx := f.propose(t, Proposal{Type: txcodec.TExtension, T: 3})
	for _, b := range tx.Blocks {
		assert.Empty(t, b.Blinding)
	}
	f.approveAll(t, id, f.parties...)
	f.chain.execute(t, id, tx)
	f.syncAll(t, f.parties...)

	assert.EqualValues(t, 3, f.parties[0].guard.Snapshot().T)
	assert.True(t, f.secret.Equal(f.reconstruct(t, f.parties...)))
	assert.False(t, f.secret.Equal(f.reconstruct(t, f.parties[0], f.parties[1])))
}

func TestApproveCommitment(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	ctx := context.Background()
	joiner, err := keyshare.NewIdentity(tss.Ed25519, rand.Reader)
	require.NoError(t, err)

	id, _ := f.propose(t, Proposal{Type: txcodec.NExtension, Joining: joiner.PublicKey()})
	a, err := f.parties[0].resharer.Approve(ctx, f.parties[0].guard.Snapshot(), id)
	require.NoError(t, err)
	assert.Len(t, a.Commitment, f.curve.ScalarSize())
	assert.False(t, bytes.Equal(a.Commitment, f.parties[0].guard.Snapshot().Share.Bytes()), "share is masked")

	id, _ = f.propose(t, Proposal{Type: txcodec.TExtension, T: 3})
	a, err = f.parties[0].resharer.Approve(ctx, f.parties[0].guard.Snapshot(), id)
	require.NoError(t, err)
	assert.Empty(t, a.Commitment)
}

func TestApproveRejectsStaleReference(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	id, _ := f.propose(t, Proposal{Type: txcodec.TExtension, T: 3})

	stale := f.parties[0].guard.Snapshot()
	stale.GroupID = tss.GroupID{9}
	_, err := f.parties[0].resharer.Approve(context.Background(), stale, id)
	assert.True(t, errors.Is(err, tss.ErrCorruptedChain))
}

func TestApproveRejectsInconsistentTransaction(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	ctx := context.Background()
	outsider, err := keyshare.NewIdentity(tss.Ed25519, rand.Reader)
	require.NoError(t, err)
	stranger := tss.Member{Index: 4242, PublicKey: outsider.PublicKey()}
	p := f.parties[0]

	deal := func(prop Proposal) tss.GroupID {
		raw, _, err := f.dealer.NewTransaction(prop)
		require.NoError(t, err)
		return f.chain.add(raw)
	}

	// removes an index that never joined, dealt in place of member 3
	fake := append(append([]tss.Member(nil), f.chain.members[:2]...), stranger)
	id := deal(Proposal{Type: txcodec.NReduction, Leaving: 4242, Group: f.chain.group, Members: fake})
	_, err = p.resharer.Approve(ctx, p.guard.Snapshot(), id)
	assert.True(t, errors.Is(err, tss.ErrNotMember), "%v", err)

	// parameters dealt for a group of four
	wide := f.chain.group
	wide.N = 4
	fake = append(append([]tss.Member(nil), f.chain.members...), stranger)
	id = deal(Proposal{Type: txcodec.NReduction, Leaving: 4242, Group: wide, Members: fake})
	_, err = p.resharer.Approve(ctx, p.guard.Snapshot(), id)
	assert.True(t, errors.Is(err, tss.ErrInvalidFormat), "%v", err)

	// a block list that leaves member 3 out
	fake = append(append([]tss.Member(nil), f.chain.members[:2]...), stranger)
	id = deal(Proposal{Type: txcodec.TExtension, T: 3, Group: f.chain.group, Members: fake})
	_, err = p.resharer.Approve(ctx, p.guard.Snapshot(), id)
	assert.True(t, errors.Is(err, tss.ErrInvalidFormat), "%v", err)

	assert.Empty(t, f.chain.approvals)
}

func TestSyncWalksChainAcrossPages(t *testing.T) {
	f := newFixture(t, tss.Secp256k1, 2, 1, 2, 3, 4, 5)
	ctx := context.Background()

	id1, tx1 := f.propose(t, Proposal{Type: txcodec.TExtension, T: 3})
	f.chain.execute(t, id1, tx1)
	id2, tx2 := f.propose(t, Proposal{Type: txcodec.NReduction, Leaving: 5})
	f.chain.execute(t, id2, tx2)
	id3, tx3 := f.propose(t, Proposal{Type: txcodec.NReduction, Leaving: 4})
	f.chain.execute(t, id3, tx3)

	// page size is two, so three records take two requests
	p := f.parties[0]
	applied, err := p.resharer.Sync(ctx, p.guard)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.GreaterOrEqual(t, f.chain.pageCalls, 2)

	s := p.guard.Snapshot()
	assert.Equal(t, id3, s.GroupID)
	assert.EqualValues(t, 3, s.T)
	assert.EqualValues(t, 3, s.N)

	f.syncAll(t, f.parties[1], f.parties[2])
	assert.True(t, f.secret.Equal(f.reconstruct(t, f.parties[:3]...)))

	applied, err = p.resharer.Sync(ctx, p.guard)
	require.NoError(t, err)
	assert.Zero(t, applied, "already at the group head")
}

func TestSyncRejectsForkedChain(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	ctx := context.Background()

	id1, tx1 := f.propose(t, Proposal{Type: txcodec.TExtension, T: 3})
	// a second transaction dealt against the same starting point
	id2, _ := f.propose(t, Proposal{Type: txcodec.NReduction, Leaving: 3})
	f.chain.execute(t, id1, tx1)
	f.chain.txs[id2].Approved = true
	f.chain.group.GroupID = id2

	p := f.parties[0]
	before := p.guard.Snapshot()
	_, err := p.resharer.Sync(ctx, p.guard)
	var failed *tss.ReshareFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, id2, failed.TransactionID)
	assert.True(t, errors.Is(err, tss.ErrCorruptedChain))
	assert.True(t, before.Equal(p.guard.Snapshot()), "nothing is committed on failure")
}

func TestSyncAbortsOnUnreadableZeroShare(t *testing.T) {
	f := newFixture(t, tss.Secp256k1, 2, 1, 2, 3, 4)
	ctx := context.Background()

	id1, tx1 := f.propose(t, Proposal{Type: txcodec.TExtension, T: 3})
	f.chain.execute(t, id1, tx1)

	raw, tx2, err := f.dealer.NewTransaction(Proposal{
		Type: txcodec.NReduction, Leaving: 4, Group: f.chain.group, Members: f.chain.members,
	})
	require.NoError(t, err)
	// blocks are sorted by index, so member 1 owns the first one
	off := txcodec.HeaderSize + txcodec.SubjectSize + 8 + f.layout.BlindingSlot + f.layout.ZeroShareSlot - 1
	raw[off] ^= 0xff
	id2 := f.chain.add(raw)
	f.chain.execute(t, id2, tx2)

	p := f.parties[0]
	before := p.guard.Snapshot()
	_, err = p.resharer.Sync(ctx, p.guard)
	var failed *tss.ReshareFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, id2, failed.TransactionID)
	assert.True(t, errors.Is(err, tss.ErrReshareFailed))
	assert.True(t, errors.Is(err, tss.ErrDecryptionFailed))
	assert.True(t, before.Equal(p.guard.Snapshot()), "the applied first transaction is rolled back")
	assert.NotContains(t, f.chain.activations, before.Index)

	// other members' blocks are intact
	f.syncAll(t, f.parties[1], f.parties[2])
	assert.Equal(t, id2, f.parties[1].guard.Snapshot().GroupID)
}

func TestSyncCorruptedChain(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	f.chain.group.GroupID = tss.GroupID{0xde, 0xad}

	p := f.parties[0]
	before := p.guard.Snapshot()
	_, err := p.resharer.Sync(context.Background(), p.guard)
	assert.True(t, errors.Is(err, tss.ErrCorruptedChain))
	assert.True(t, before.Equal(p.guard.Snapshot()))
}

func TestUnknownTransactionType(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	ctx := context.Background()
	raw, tx, err := f.dealer.NewTransaction(Proposal{
		Type: txcodec.TExtension, T: 3, Group: f.chain.group, Members: f.chain.members,
	})
	require.NoError(t, err)
	copy(raw[:8], []byte("unknown!"))
	id := f.chain.add(raw)

	p := f.parties[0]
	_, err = p.resharer.Approve(ctx, p.guard.Snapshot(), id)
	assert.True(t, errors.Is(err, tss.ErrUnknownTransactionType))

	f.chain.execute(t, id, tx)
	before := p.guard.Snapshot()
	_, err = p.resharer.Sync(ctx, p.guard)
	var failed *tss.ReshareFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, id, failed.TransactionID)
	assert.True(t, errors.Is(err, tss.ErrUnknownTransactionType))
	assert.True(t, before.Equal(p.guard.Snapshot()))
}

func TestEnrollRejections(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	ctx := context.Background()
	master := f.chain.group.MasterPublicKey
	joiner, err := keyshare.NewIdentity(tss.Ed25519, rand.Reader)
	require.NoError(t, err)
	stranger, err := keyshare.NewIdentity(tss.Ed25519, rand.Reader)
	require.NoError(t, err)

	id, tx := f.propose(t, Proposal{Type: txcodec.NExtension, Joining: joiner.PublicKey()})

	_, err = f.resharer(joiner).Enroll(ctx, master, id)
	assert.True(t, errors.Is(err, tss.ErrInvalidParameters), "not executed yet")

	f.chain.execute(t, id, tx)
	_, err = f.resharer(joiner).Enroll(ctx, master, id)
	assert.True(t, errors.Is(err, tss.ErrInsufficientSignatures), "no commitments")

	_, err = f.resharer(stranger).Enroll(ctx, master, id)
	assert.True(t, errors.Is(err, tss.ErrNotMember))

	_, err = f.resharer(joiner).Enroll(ctx, master, tss.GroupID{7})
	assert.True(t, errors.Is(err, tss.ErrNotFound))
}

func TestDealerRejectsInvalidProposals(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	base := Proposal{Group: f.chain.group, Members: f.chain.members}

	cases := map[string]Proposal{
		"missing joining key": {Type: txcodec.NExtension},
		"duplicate joining":   {Type: txcodec.NExtension, Joining: f.chain.members[0].PublicKey},
		"unknown leaving":     {Type: txcodec.NReduction, Leaving: 42},
		"t above n":           {Type: txcodec.TExtension, T: 4},
		"t not raised":        {Type: txcodec.TExtension, T: 2},
		"t drop by two":       {Type: txcodec.TReduction, T: 0},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			p.Type, p.Joining, p.Leaving, p.T = c.Type, c.Joining, c.Leaving, c.T
			_, _, err := f.dealer.NewTransaction(p)
			assert.True(t, errors.Is(err, tss.ErrInvalidParameters), "%v", err)
		})
	}

	_, _, err := f.dealer.NewTransaction(Proposal{Type: txcodec.Type(99), Group: f.chain.group, Members: f.chain.members})
	assert.True(t, errors.Is(err, tss.ErrUnknownTransactionType))

	// removing a member of a 2-of-2 would leave the group below threshold
	g := newFixture(t, tss.Ed25519, 2, 1, 2)
	_, _, err = g.dealer.NewTransaction(Proposal{Type: txcodec.NReduction, Leaving: 1, Group: g.chain.group, Members: g.chain.members})
	assert.True(t, errors.Is(err, tss.ErrInvalidParameters))
}

func TestDealtIndicesAreFresh(t *testing.T) {
	f := newFixture(t, tss.Ed25519, 2, 1, 2, 3)
	seen := map[uint64]bool{1: true, 2: true, 3: true}
	for i := 0; i < 16; i++ {
		id, err := keyshare.NewIdentity(tss.Ed25519, rand.Reader)
		require.NoError(t, err)
		_, tx, err := f.dealer.NewTransaction(Proposal{
			Type: txcodec.NExtension, Joining: id.PublicKey(), Group: f.chain.group, Members: f.chain.members,
		})
		require.NoError(t, err)
		idx := tx.Subject.Index
		assert.NotZero(t, idx)
		assert.Less(t, idx, uint64(1)<<63)
		assert.False(t, seen[idx])
		seen[idx] = true
		indices := tx.Indices()
		assert.True(t, sort.SliceIsSorted(indices, func(i, j int) bool { return indices[i] < indices[j] }))
	}
}
