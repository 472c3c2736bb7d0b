// Package member is one device's threshold-signing engine: an identity key,
// at most one key share, and a connection to the coordinating service.
package member

import (
	"bytes"
	"context"

	logging "github.com/ipfs/go-log"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/reshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/sign"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

var log = logging.Logger("tss/member")

// Member serializes every share mutation through a single guard. Signing
// works on snapshots, so sessions for different messages run concurrently.
type Member struct {
	cfg      Config
	identity *keyshare.Identity
	collab   tss.Collaborator
	guard    *keyshare.Guard
	signer   *sign.Signer
	resharer *reshare.Resharer
}

func New(cfg Config, identity *keyshare.Identity, collab tss.Collaborator) (*Member, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if identity == nil || collab == nil {
		return nil, errors.Wrap(tss.ErrInvalidParameters, "member needs an identity and a collaborator")
	}
	layout, err := txcodec.NewLayout(cfg.LayoutVersion, identity.Curve())
	if err != nil {
		return nil, err
	}
	return &Member{
		cfg:      cfg,
		identity: identity,
		collab:   collab,
		guard:    keyshare.NewGuard(nil),
		signer:   sign.NewSigner(collab, identity),
		resharer: reshare.NewResharer(collab, identity, reshare.Options{
			Layout:   layout,
			PageSize: cfg.PageSize,
			Rand:     cfg.Rand,
		}),
	}, nil
}

func (m *Member) PublicKey() []byte {
	return m.identity.PublicKey()
}

// Share returns a copy of the held key share, or nil before onboarding.
func (m *Member) Share() *keyshare.ThresholdKeyShare {
	return m.guard.Snapshot()
}

// Onboard opens the share the coordinator holds for this member's identity
// key and publishes it back as the activation record.
func (m *Member) Onboard(ctx context.Context, masterKey []byte) (*keyshare.ThresholdKeyShare, error) {
	members, err := m.collab.Members(ctx, masterKey)
	if err != nil {
		return nil, err
	}
	record, ok := tss.MemberByKey(members, m.identity.PublicKey())
	if !ok {
		return nil, errors.Wrap(tss.ErrNotMember, "identity key is not a member of the group")
	}
	if len(record.EncryptedShare) == 0 {
		return nil, errors.Wrapf(tss.ErrNotFound, "no share stored for member %d", record.Index)
	}
	share, err := keyshare.FromEnvelope(record.EncryptedShare, m.identity)
	if err != nil {
		return nil, err
	}
	if share.Index != record.Index || !bytes.Equal(share.MasterPublicKey, masterKey) {
		return nil, errors.Wrap(tss.ErrInvalidFormat, "stored share belongs to another member or group")
	}
	if err := m.activate(ctx, share); err != nil {
		return nil, err
	}
	m.guard.Set(share)
	log.Infof("member %s onboarded at group %s", share.MemberID(), share.GroupID)
	return share.Clone(), nil
}

// Restore installs a share from its secret string.
func (m *Member) Restore(secret string) error {
	share, err := keyshare.FromSecretString(secret)
	if err != nil {
		return err
	}
	if share.Curve != m.identity.Curve().Name() {
		return errors.Wrapf(tss.ErrInvalidFormat, "share on %s for identity on %s", share.Curve, m.identity.Curve().Name())
	}
	m.guard.Set(share)
	return nil
}

// Enroll derives this member's first share from the executed nExtension
// that added it.
func (m *Member) Enroll(ctx context.Context, masterKey []byte, txID tss.GroupID) (*keyshare.ThresholdKeyShare, error) {
	share, err := m.resharer.Enroll(ctx, masterKey, txID)
	if err != nil {
		return nil, err
	}
	m.guard.Set(share)
	return share.Clone(), nil
}

// Propose opens a signing session for message in this member's group.
func (m *Member) Propose(ctx context.Context, message, raw []byte) (string, error) {
	share, err := m.current()
	if err != nil {
		return "", err
	}
	return m.collab.Propose(ctx, share.MasterPublicKey, message, raw)
}

// Sign contributes this member's partial signature to a session.
func (m *Member) Sign(ctx context.Context, sessionID string) (*tss.PartialSignature, error) {
	share, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.signer.Sign(ctx, share, sessionID)
}

// SignBatch signs several sessions concurrently against one snapshot of the share.
func (m *Member) SignBatch(ctx context.Context, sessionIDs []string) (*sign.BatchSignResult, error) {
	share, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.signer.SignBatch(ctx, share, sessionIDs)
}

// Aggregate combines the partials of a session and records the signature.
func (m *Member) Aggregate(ctx context.Context, sessionID string) (*sign.Signature, error) {
	return m.signer.Finalize(ctx, sessionID)
}

// Verify checks signature against the group's master public key.
func (m *Member) Verify(message, signature []byte) error {
	share, err := m.current()
	if err != nil {
		return err
	}
	curve, err := share.CurveImpl()
	if err != nil {
		return err
	}
	return sign.Verify(curve, share.MasterPublicKey, message, signature)
}

// Approve counter-signs a reconfiguration transaction. Transactions with an
// unknown selector are refused and must be skipped by the caller.
func (m *Member) Approve(ctx context.Context, txID tss.GroupID) (*tss.Approval, error) {
	share, err := m.current()
	if err != nil {
		return nil, err
	}
	approval, err := m.resharer.Approve(ctx, share, txID)
	if errors.Is(err, tss.ErrUnknownTransactionType) {
		log.Warnf("member %s skipping transaction %s: %v", share.MemberID(), txID, err)
	}
	return approval, err
}

// Sync brings the share up to the group's current configuration and returns
// the number of transactions applied.
func (m *Member) Sync(ctx context.Context) (int, error) {
	return m.resharer.Sync(ctx, m.guard)
}

// Watch subscribes to the events of this member's group.
func (m *Member) Watch(ctx context.Context, handler func(tss.Event)) (tss.Subscription, error) {
	share, err := m.current()
	if err != nil {
		return nil, err
	}
	return m.collab.Watch(ctx, share.MasterPublicKey, handler)
}

func (m *Member) current() (*keyshare.ThresholdKeyShare, error) {
	share := m.guard.Snapshot()
	if share == nil {
		return nil, errors.Wrap(tss.ErrNotMember, "no key share held")
	}
	return share, nil
}

func (m *Member) activate(ctx context.Context, share *keyshare.ThresholdKeyShare) error {
	env, err := keyshare.Seal(share, m.identity, m.cfg.Rand)
	if err != nil {
		return err
	}
	return m.collab.Activate(ctx, share.MasterPublicKey, share.Index, env)
}
