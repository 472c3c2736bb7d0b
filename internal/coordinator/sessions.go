package coordinator

import (
	"context"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/protocol/sign"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// SessionID derives the id of the session signing message for a group.
func SessionID(masterKey, message []byte) string {
	return base58.Encode(keccak256(masterKey, message))
}

// Propose opens a signing session and deals its nonce to every member.
// Proposing the same message again returns the open session, unless the
// group has been reconfigured since it was dealt.
func (c *Coordinator) Propose(ctx context.Context, masterKey []byte, message, raw []byte) (string, error) {
	if len(message) == 0 {
		return "", errors.Wrap(tss.ErrInvalidParameters, "empty message")
	}
	id := SessionID(masterKey, message)

	c.mu.Lock()
	g, err := c.group(masterKey)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	if s, ok := c.sessions.Get(id); ok {
		if s.Finalized() || s.GroupID == g.desc.GroupID {
			c.mu.Unlock()
			return id, nil
		}
		log.Infof("group %s: session %s was dealt at %s, dealing again", g.desc.GroupID, id, s.GroupID)
	}
	dealt, err := sign.Deal(g.curve, g.desc.T, g.members, c.cfg.Rand)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	c.sessions.Add(id, &tss.SigningSession{
		ID:              id,
		GroupID:         g.desc.GroupID,
		Curve:           g.desc.Curve,
		MasterPublicKey: g.desc.MasterPublicKey,
		Threshold:       g.desc.T,
		Message:         append([]byte(nil), message...),
		Raw:             append([]byte(nil), raw...),
		Nonce:           dealt.Nonce,
		Blinding:        dealt.Blinding,
		Partials:        make(map[uint64]tss.PartialSignature),
	})
	c.mu.Unlock()

	log.Infof("group %s: session %s proposed", g.desc.GroupID, id)
	c.emit(masterKey, tss.Event{Kind: tss.EventProposal, SessionID: id})
	return id, nil
}

// Session returns a copy of the session.
func (c *Coordinator) Session(ctx context.Context, id string) (*tss.SigningSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions.Get(id)
	if !ok {
		return nil, errors.Wrapf(tss.ErrNotFound, "session %s", id)
	}
	return copySession(s), nil
}

// SubmitPartial stores a member's partial, replacing an earlier one.
func (c *Coordinator) SubmitPartial(ctx context.Context, sessionID string, partial tss.PartialSignature) error {
	c.mu.Lock()
	s, ok := c.sessions.Get(sessionID)
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrNotFound, "session %s", sessionID)
	}
	if s.Finalized() {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrSessionClosed, "session %s", sessionID)
	}
	if _, dealt := s.Blinding[partial.Index]; !dealt {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrNotMember, "member %d has no nonce share in session %s", partial.Index, sessionID)
	}
	s.Partials[partial.Index] = tss.PartialSignature{Index: partial.Index, Bytes: append([]byte(nil), partial.Bytes...)}
	master := s.MasterPublicKey
	c.mu.Unlock()

	log.Debugf("session %s: partial %s", sessionID, recordID(sessionID, memberID(partial.Index)))
	c.emit(master, tss.Event{Kind: tss.EventPartial, SessionID: sessionID, Index: partial.Index})
	return nil
}

// SubmitSignature verifies and records the aggregated signature. A finalized
// session accepts no further writes.
func (c *Coordinator) SubmitSignature(ctx context.Context, sessionID string, signature []byte) error {
	c.mu.Lock()
	s, ok := c.sessions.Get(sessionID)
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrNotFound, "session %s", sessionID)
	}
	if s.Finalized() {
		c.mu.Unlock()
		return errors.Wrapf(tss.ErrSessionClosed, "session %s", sessionID)
	}
	g, err := c.group(s.MasterPublicKey)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if err := sign.Verify(g.curve, s.MasterPublicKey, s.Message, signature); err != nil {
		c.mu.Unlock()
		return err
	}
	s.Signature = append([]byte(nil), signature...)
	master := s.MasterPublicKey
	c.mu.Unlock()

	log.Infof("session %s: signature recorded", sessionID)
	c.emit(master, tss.Event{Kind: tss.EventSignature, SessionID: sessionID})
	return nil
}

func copySession(s *tss.SigningSession) *tss.SigningSession {
	cp := *s
	cp.Blinding = make(map[uint64]tss.Envelope, len(s.Blinding))
	for k, v := range s.Blinding {
		cp.Blinding[k] = v
	}
	cp.Partials = make(map[uint64]tss.PartialSignature, len(s.Partials))
	for k, v := range s.Partials {
		cp.Partials[k] = v
	}
	return &cp
}
