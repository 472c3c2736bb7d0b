// Package coordinator is an in-memory coordinating service for tests and
// examples. It deals group keys and nonces as a trusted dealer, stores
// sessions, transactions and approvals, and serializes execution so that each
// group id is consumed by at most one transaction.
package coordinator

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/btcsuite/btcutil/base58"
	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/internal/crypto/polynomial"
	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

var log = logging.Logger("tss/coordinator")

type group struct {
	desc      tss.GroupDescriptor
	curve     curves.Curve
	layout    txcodec.Layout
	members   []tss.Member
	txs       map[tss.GroupID]*tss.TransactionRecord
	order     []tss.GroupID
	approvals map[tss.GroupID]map[uint64]tss.Approval
}

func (g *group) member(index uint64) (int, bool) {
	for i, m := range g.members {
		if m.Index == index {
			return i, true
		}
	}
	return 0, false
}

// Coordinator implements tss.Collaborator in memory.
type Coordinator struct {
	cfg Config

	mu       sync.Mutex
	groups   map[string]*group
	sessions *lru.Cache[string, *tss.SigningSession]
	watchers map[string]map[string]*subscription
}

var _ tss.Collaborator = (*Coordinator)(nil)

func New(cfg Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sessions, err := lru.New[string, *tss.SigningSession](cfg.SessionCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "session cache")
	}
	return &Coordinator{
		cfg:      cfg,
		groups:   make(map[string]*group),
		sessions: sessions,
		watchers: make(map[string]map[string]*subscription),
	}, nil
}

// CreateGroup deals a fresh t-of-n key to the given identity keys and returns
// the group descriptor. Each member finds its share in the EncryptedShare of
// its Members entry.
func (c *Coordinator) CreateGroup(ctx context.Context, curveName tss.CurveName, t uint64, keys [][]byte) (*tss.GroupDescriptor, error) {
	curve, err := curves.ForName(curveName)
	if err != nil {
		return nil, err
	}
	layout, err := txcodec.NewLayout(c.cfg.LayoutVersion, curve)
	if err != nil {
		return nil, err
	}
	if t == 0 || uint64(len(keys)) < t {
		return nil, errors.Wrapf(tss.ErrInvalidParameters, "%d-of-%d group", t, len(keys))
	}
	poly, err := polynomial.New(curve, int(t)-1, nil, c.cfg.Rand)
	if err != nil {
		return nil, err
	}
	master := poly.Commit().Bytes()

	g := &group{
		desc: tss.GroupDescriptor{
			Curve:           curveName,
			T:               t,
			N:               uint64(len(keys)),
			MasterPublicKey: master,
		},
		curve:     curve,
		layout:    layout,
		txs:       make(map[tss.GroupID]*tss.TransactionRecord),
		approvals: make(map[tss.GroupID]map[uint64]tss.Approval),
	}
	copy(g.desc.GroupID[:], keccak256(master))

	taken := make(map[uint64]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := tss.MemberByKey(g.members, key); dup {
			return nil, errors.Wrap(tss.ErrInvalidParameters, "duplicate member key")
		}
		index, err := randomIndex(c.cfg.Rand, taken)
		if err != nil {
			return nil, err
		}
		share := &keyshare.ThresholdKeyShare{
			Curve:           curveName,
			GroupID:         g.desc.GroupID,
			MasterPublicKey: master,
			Index:           index,
			T:               t,
			N:               g.desc.N,
			Share:           poly.EvaluateAt(index),
		}
		env, err := envelope.Seal(curve, envelope.EncodeShare(share.SecretString()), key, c.cfg.Rand)
		if err != nil {
			return nil, errors.Wrapf(err, "seal share for member %d", index)
		}
		g.members = append(g.members, tss.Member{
			Index:          index,
			PublicKey:      append([]byte(nil), key...),
			EncryptedShare: env,
		})
	}

	c.mu.Lock()
	c.groups[string(master)] = g
	c.mu.Unlock()

	log.Infof("created %d-of-%d %s group %s", t, len(keys), curveName, g.desc.GroupID)
	desc := g.desc
	return &desc, nil
}

func (c *Coordinator) Group(ctx context.Context, masterKey []byte) (*tss.GroupDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, err := c.group(masterKey)
	if err != nil {
		return nil, err
	}
	desc := g.desc
	return &desc, nil
}

func (c *Coordinator) Members(ctx context.Context, masterKey []byte) ([]tss.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, err := c.group(masterKey)
	if err != nil {
		return nil, err
	}
	return append([]tss.Member(nil), g.members...), nil
}

// Activate records the member's share sealed to its own key. The member must
// belong to the group's current configuration.
func (c *Coordinator) Activate(ctx context.Context, masterKey []byte, index uint64, share tss.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, err := c.group(masterKey)
	if err != nil {
		return err
	}
	i, ok := g.member(index)
	if !ok {
		return errors.Wrapf(tss.ErrNotMember, "member %d", index)
	}
	g.members[i].Activated = true
	g.members[i].EncryptedShare = append(tss.Envelope(nil), share...)
	log.Debugf("group %s: member %d activated", g.desc.GroupID, index)
	return nil
}

// group must be called with c.mu held.
func (c *Coordinator) group(masterKey []byte) (*group, error) {
	g, ok := c.groups[string(masterKey)]
	if !ok {
		return nil, errors.Wrap(tss.ErrNotFound, "unknown group")
	}
	return g, nil
}

func randomIndex(rand io.Reader, taken map[uint64]struct{}) (uint64, error) {
	var b [8]byte
	for {
		if _, err := io.ReadFull(rand, b[:]); err != nil {
			return 0, errors.Wrap(err, "read randomness")
		}
		index := binary.LittleEndian.Uint64(b[:]) >> 1
		if _, dup := taken[index]; index != 0 && !dup {
			taken[index] = struct{}{}
			return index, nil
		}
	}
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// recordID names a member's contribution to a session or transaction.
func recordID(parent string, memberID string) string {
	return base58.Encode(keccak256([]byte(parent), []byte(memberID))[:16])
}

func memberID(index uint64) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], index)
	return base58.Encode(b[:])
}
