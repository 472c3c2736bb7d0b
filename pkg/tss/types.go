package tss

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// CurveName identifies the signature curve of a group.
type CurveName string

const (
	Ed25519   CurveName = "ed25519"
	Secp256k1 CurveName = "secp256k1"
)

// GroupID is the 8-byte chain position of a group. It changes every time a
// reconfiguration transaction is executed and equals that transaction's id.
type GroupID [8]byte

func (g GroupID) String() string {
	return base58.Encode(g[:])
}

func (g GroupID) IsZero() bool {
	return g == GroupID{}
}

// ParseGroupID decodes the base58 form produced by String.
func ParseGroupID(s string) (GroupID, error) {
	var g GroupID
	raw := base58.Decode(s)
	if len(raw) != len(g) {
		return g, errors.Wrapf(ErrInvalidFormat, "group id %q", s)
	}
	copy(g[:], raw)
	return g, nil
}

// GroupDescriptor is the public identity of a multisig group.
type GroupDescriptor struct {
	GroupID         GroupID
	Curve           CurveName
	T               uint64
	N               uint64
	MasterPublicKey []byte
}

// Validate reports every inconsistency of the descriptor at once.
func (d *GroupDescriptor) Validate() error {
	var result *multierror.Error
	if d.Curve != Ed25519 && d.Curve != Secp256k1 {
		result = multierror.Append(result, fmt.Errorf("unsupported curve %q", d.Curve))
	}
	if d.T == 0 {
		result = multierror.Append(result, errors.New("threshold must be positive"))
	}
	if d.T > d.N {
		result = multierror.Append(result, fmt.Errorf("threshold %d exceeds group size %d", d.T, d.N))
	}
	if len(d.MasterPublicKey) == 0 {
		result = multierror.Append(result, errors.New("missing master public key"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(ErrInvalidParameters, err.Error())
	}
	return nil
}

// Envelope is a ciphertext only its recipient can open.
type Envelope []byte

// Member is the coordinator's view of one participant.
type Member struct {
	Index          uint64
	PublicKey      []byte
	Activated      bool
	EncryptedShare Envelope
}

// SigningSession is a message being signed by the group.
type SigningSession struct {
	ID              string
	GroupID         GroupID
	Curve           CurveName
	MasterPublicKey []byte
	Threshold       uint64
	Message         []byte
	// Raw is the chain-native payload the message was derived from. It is
	// carried for outer adapters and never interpreted here.
	Raw []byte
	// Nonce is the group nonce point dealt for this session.
	Nonce     []byte
	Blinding  map[uint64]Envelope
	Partials  map[uint64]PartialSignature
	Signature []byte
}

// Finalized reports whether an aggregated signature has been recorded.
func (s *SigningSession) Finalized() bool {
	return len(s.Signature) > 0
}

// PartialSignature is one member's contribution: its nonce point followed by
// its response scalar.
type PartialSignature struct {
	Index uint64
	Bytes []byte
}

// TransactionRecord is a reconfiguration transaction as stored by the coordinator.
type TransactionRecord struct {
	ID        GroupID
	Raw       []byte
	Approved  bool
	CreatedAt time.Time
}

// Approval is one member's counter-signature of a reconfiguration transaction.
// Commitment is set for transaction types that need the member's masked share.
type Approval struct {
	TransactionID GroupID
	Index         uint64
	Commitment    []byte
}

// MemberByKey returns the member whose identity key equals pub.
func MemberByKey(members []Member, pub []byte) (Member, bool) {
	for _, m := range members {
		if bytes.Equal(m.PublicKey, pub) {
			return m, true
		}
	}
	return Member{}, false
}
