package coordinator

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/protocol/reshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// ProposeReconfiguration deals a transaction against the group's current
// configuration. The group and member list of p are filled in here.
func (c *Coordinator) ProposeReconfiguration(ctx context.Context, masterKey []byte, p reshare.Proposal) (tss.GroupID, error) {
	c.mu.Lock()
	g, err := c.group(masterKey)
	if err != nil {
		c.mu.Unlock()
		return tss.GroupID{}, err
	}
	p.Group = g.desc
	p.Members = append([]tss.Member(nil), g.members...)
	raw, tx, err := reshare.NewDealer(g.curve, g.layout, c.cfg.Rand).NewTransaction(p)
	if err != nil {
		c.mu.Unlock()
		return tss.GroupID{}, err
	}
	id := txcodec.TransactionID(raw)
	g.txs[id] = &tss.TransactionRecord{ID: id, Raw: raw, CreatedAt: time.Now()}
	g.order = append(g.order, id)
	c.mu.Unlock()

	log.Infof("group %s: %s transaction %s proposed", tx.RefGroupID, tx.Type, id)
	c.emit(masterKey, tss.Event{Kind: tss.EventTransaction, TransactionID: id})
	return id, nil
}

// Submit stores a transaction built elsewhere. Its content is checked when
// members approve it and again on Execute.
func (c *Coordinator) Submit(ctx context.Context, masterKey []byte, raw []byte) (tss.GroupID, error) {
	id := txcodec.TransactionID(raw)
	c.mu.Lock()
	g, err := c.group(masterKey)
	if err != nil {
		c.mu.Unlock()
		return id, err
	}
	if _, exists := g.txs[id]; !exists {
		g.txs[id] = &tss.TransactionRecord{ID: id, Raw: append([]byte(nil), raw...), CreatedAt: time.Now()}
		g.order = append(g.order, id)
	}
	c.mu.Unlock()

	c.emit(masterKey, tss.Event{Kind: tss.EventTransaction, TransactionID: id})
	return id, nil
}

func (c *Coordinator) Transaction(ctx context.Context, masterKey []byte, id tss.GroupID) (*tss.TransactionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, err := c.group(masterKey)
	if err != nil {
		return nil, err
	}
	rec, ok := g.txs[id]
	if !ok {
		return nil, errors.Wrapf(tss.ErrNotFound, "transaction %s", id)
	}
	cp := *rec
	return &cp, nil
}

// ApprovedTransactions pages through executed transactions in creation order.
func (c *Coordinator) ApprovedTransactions(ctx context.Context, masterKey []byte, offset, limit int) ([]tss.TransactionRecord, error) {
	if offset < 0 || limit <= 0 {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "page offset %d limit %d", offset, limit)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	g, err := c.group(masterKey)
	if err != nil {
		return nil, err
	}
	var out []tss.TransactionRecord
	skipped := 0
	for _, id := range g.order {
		rec := g.txs[id]
		if !rec.Approved {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Approvals lists the approvals of a transaction ordered by member index.
func (c *Coordinator) Approvals(ctx context.Context, masterKey []byte, id tss.GroupID) ([]tss.Approval, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, err := c.group(masterKey)
	if err != nil {
		return nil, err
	}
	if _, ok := g.txs[id]; !ok {
		return nil, errors.Wrapf(tss.ErrNotFound, "transaction %s", id)
	}
	out := make([]tss.Approval, 0, len(g.approvals[id]))
	for _, a := range g.approvals[id] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// SubmitApproval records a current member's approval of a pending transaction.
// A second approval by the same member replaces the first.
func (c *Coordinator) SubmitApproval(ctx context.Context, masterKey []byte, approval tss.Approval) error {
	c.mu.Lock()
	g, err := c.group(masterKey)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	rec, ok := g.txs[approval.TransactionID]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrNotFound, "transaction %s", approval.TransactionID)
	}
	if rec.Approved {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrSessionClosed, "transaction %s already executed", rec.ID)
	}
	if _, ok := g.member(approval.Index); !ok {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrNotMember, "member %d", approval.Index)
	}
	if g.approvals[rec.ID] == nil {
		g.approvals[rec.ID] = make(map[uint64]tss.Approval)
	}
	approval.Commitment = append([]byte(nil), approval.Commitment...)
	g.approvals[rec.ID][approval.Index] = approval
	c.mu.Unlock()

	log.Debugf("transaction %s: approval %s", rec.ID, recordID(rec.ID.String(), memberID(approval.Index)))
	c.emit(masterKey, tss.Event{Kind: tss.EventApproval, TransactionID: rec.ID, Index: approval.Index})
	return nil
}

// Execute approves a transaction once the threshold of members has approved
// it and moves the group to its configuration. Only a transaction that starts
// from the current group id and moves the current parameters and member list
// by one step can be executed, so the chain never forks.
func (c *Coordinator) Execute(ctx context.Context, masterKey []byte, id tss.GroupID) error {
	c.mu.Lock()
	g, err := c.group(masterKey)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	rec, ok := g.txs[id]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrNotFound, "transaction %s", id)
	}
	if rec.Approved {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrSessionClosed, "transaction %s already executed", id)
	}
	tx, err := g.layout.Decode(rec.Raw)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if tx.RefGroupID != g.desc.GroupID {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrCorruptedChain, "transaction %s starts from %s, group is at %s", id, tx.RefGroupID, g.desc.GroupID)
	}
	if err := tx.Follows(g.desc.T, g.desc.N); err != nil {
		c.mu.Unlock()
		return errors.WithMessagef(err, "transaction %s", id)
	}
	members, err := tx.Recipients(g.members)
	if err != nil {
		c.mu.Unlock()
		return errors.WithMessagef(err, "transaction %s", id)
	}
	got := 0
	for _, a := range g.approvals[id] {
		if _, current := g.member(a.Index); !current {
			continue
		}
		if tx.Type.NeedsCommitment() && len(a.Commitment) == 0 {
			continue
		}
		got++
	}
	if uint64(got) < g.desc.T {
		c.mu.Unlock()
		return &tss.InsufficientSignaturesError{Required: g.desc.T, Got: got}
	}

	g.members = members
	for i := range g.members {
		g.members[i].Activated = false
	}
	g.desc.GroupID, g.desc.T, g.desc.N = id, tx.T, tx.N
	rec.Approved = true
	c.mu.Unlock()

	log.Infof("group %s: executed %s, now %d-of-%d", id, tx.Type, tx.T, tx.N)
	c.emit(masterKey, tss.Event{Kind: tss.EventExecuted, TransactionID: id})
	return nil
}
