package sign

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

var log = logging.Logger("tss/sign")

type round int

const (
	roundFetch round = iota + 1
	roundDecrypt
	roundPartial
	roundSubmit
	roundDone
)

var roundNames = map[round]string{
	roundFetch:   "fetch",
	roundDecrypt: "decrypt",
	roundPartial: "partial-sign",
	roundSubmit:  "submit",
	roundDone:    "done",
}

// Signer drives one member through the signing rounds of a session.
type Signer struct {
	sessions tss.SessionStore
	identity *keyshare.Identity
}

func NewSigner(sessions tss.SessionStore, identity *keyshare.Identity) *Signer {
	return &Signer{sessions: sessions, identity: identity}
}

// state is the per-session progress of one member.
type state struct {
	sessionID string
	share     *keyshare.ThresholdKeyShare
	curve     curves.Curve
	round     round

	session *tss.SigningSession
	nonce   curves.Scalar
	partial *tss.PartialSignature
}

func (s *state) Details() string {
	return fmt.Sprintf("Signing session %s member %s round %d (%s)", s.sessionID, s.share.MemberID(), s.round, roundNames[s.round])
}

// Sign fetches the session, opens this member's nonce share, computes the
// partial signature and submits it.
func (s *Signer) Sign(ctx context.Context, share *keyshare.ThresholdKeyShare, sessionID string) (*tss.PartialSignature, error) {
	curve, err := share.CurveImpl()
	if err != nil {
		return nil, err
	}
	st := &state{sessionID: sessionID, share: share, curve: curve, round: roundFetch}
	for st.round != roundDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.step(ctx, st); err != nil {
			return nil, errors.WithMessage(err, st.Details())
		}
	}
	return st.partial, nil
}

func (s *Signer) step(ctx context.Context, st *state) error {
	switch st.round {
	case roundFetch:
		session, err := s.sessions.Session(ctx, st.sessionID)
		if err != nil {
			return err
		}
		if session.Finalized() {
			return tss.ErrSessionClosed
		}
		if session.GroupID != st.share.GroupID {
			return errors.Wrapf(tss.ErrStaleSession, "session is at group %s, share is at %s", session.GroupID, st.share.GroupID)
		}
		if _, ok := session.Blinding[st.share.Index]; !ok {
			return errors.Wrapf(tss.ErrNotMember, "no nonce share for member %d", st.share.Index)
		}
		st.session = session
		log.Debugf("%s: fetched, %d partials present", st.Details(), len(session.Partials))

	case roundDecrypt:
		payload, err := s.identity.Open(st.session.Blinding[st.share.Index])
		if err != nil {
			return err
		}
		raw, err := envelope.DecodeBlinding(payload)
		if err != nil {
			return err
		}
		st.nonce, err = st.curve.ScalarFromBytes(raw)
		if err != nil {
			return err
		}
		log.Debugf("%s: nonce share opened", st.Details())

	case roundPartial:
		partial, err := PartialSign(st.curve, st.share, st.session, st.nonce)
		if err != nil {
			return err
		}
		st.partial = partial

	case roundSubmit:
		if err := s.sessions.SubmitPartial(ctx, st.sessionID, *st.partial); err != nil {
			return err
		}
		log.Debugf("%s: partial submitted", st.Details())
	}
	st.round++
	return nil
}

// Finalize aggregates the session once enough partials are in and records the
// signature with the coordinator. It is safe to call from any member.
func (s *Signer) Finalize(ctx context.Context, sessionID string) (*Signature, error) {
	session, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	curve, err := curves.ForName(session.Curve)
	if err != nil {
		return nil, err
	}
	sig, err := Aggregate(curve, session)
	if err != nil {
		return nil, err
	}
	if !session.Finalized() {
		if err := s.sessions.SubmitSignature(ctx, sessionID, sig.Bytes); err != nil {
			return nil, err
		}
	}
	log.Infof("session %s aggregated from members %v", sessionID, sig.Participants)
	return sig, nil
}
