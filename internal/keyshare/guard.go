package keyshare

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Guard owns a key share and admits one writer at a time.
type Guard struct {
	mu    sync.Mutex
	share *ThresholdKeyShare
}

func NewGuard(share *ThresholdKeyShare) *Guard {
	return &Guard{share: share}
}

// Snapshot returns a private copy of the current share, or nil if none is held.
func (g *Guard) Snapshot() *ThresholdKeyShare {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.share == nil {
		return nil
	}
	return g.share.Clone()
}

// Update runs fn on a copy of the share while holding the write lock and
// installs the copy only if fn succeeds.
func (g *Guard) Update(fn func(*ThresholdKeyShare) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.share == nil {
		return errors.Wrap(tss.ErrNotMember, "no key share held")
	}
	next := g.share.Clone()
	if err := fn(next); err != nil {
		return err
	}
	g.share = next
	return nil
}

// Set replaces the held share.
func (g *Guard) Set(share *ThresholdKeyShare) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.share = share
}

// FromEnvelope opens an onboarding envelope and parses the share inside.
func FromEnvelope(env tss.Envelope, id *Identity) (*ThresholdKeyShare, error) {
	payload, err := id.Open(env)
	if err != nil {
		return nil, err
	}
	secret, err := envelope.DecodeShare(payload)
	if err != nil {
		return nil, err
	}
	share, err := FromSecretString(secret)
	if err != nil {
		return nil, err
	}
	if share.Curve != id.Curve().Name() {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "share on %s for identity on %s", share.Curve, id.Curve().Name())
	}
	return share, nil
}

// Seal encrypts the share to the identity, ready to publish as an activation record.
func Seal(share *ThresholdKeyShare, id *Identity, rand io.Reader) (tss.Envelope, error) {
	return id.SealToSelf(envelope.EncodeShare(share.SecretString()), rand)
}
