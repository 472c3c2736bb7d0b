// Package keyshare holds one member's Shamir share of a group secret.
package keyshare

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// CompressedSize is the width of the compressed share layout:
// index(8 LE) | t(8 LE) | n(8 LE) | groupId(8) | share(32).
const CompressedSize = 64

// Secret string tags. The legacy scheme names are accepted when parsing.
var curveTags = map[string]tss.CurveName{
	"ed25519":   tss.Ed25519,
	"secp256k1": tss.Secp256k1,
	"eddsa":     tss.Ed25519,
	"ecdsa":     tss.Secp256k1,
}

// ThresholdKeyShare is one member's share f(Index) of the group polynomial.
// It is never transmitted in clear.
type ThresholdKeyShare struct {
	Curve           tss.CurveName
	GroupID         tss.GroupID
	MasterPublicKey []byte
	Index           uint64
	T               uint64
	N               uint64
	Share           curves.Scalar
}

// MemberID is the base58 form of the member index. It survives proactivation.
func (k *ThresholdKeyShare) MemberID() string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], k.Index)
	return base58.Encode(b[:])
}

func (k *ThresholdKeyShare) Descriptor() tss.GroupDescriptor {
	return tss.GroupDescriptor{
		GroupID:         k.GroupID,
		Curve:           k.Curve,
		T:               k.T,
		N:               k.N,
		MasterPublicKey: append([]byte(nil), k.MasterPublicKey...),
	}
}

// CurveImpl returns the arithmetic for the share's curve.
func (k *ThresholdKeyShare) CurveImpl() (curves.Curve, error) {
	return curves.ForName(k.Curve)
}

func (k *ThresholdKeyShare) Clone() *ThresholdKeyShare {
	c := *k
	c.MasterPublicKey = append([]byte(nil), k.MasterPublicKey...)
	return &c
}

func (k *ThresholdKeyShare) Equal(o *ThresholdKeyShare) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.Curve == o.Curve &&
		k.GroupID == o.GroupID &&
		bytes.Equal(k.MasterPublicKey, o.MasterPublicKey) &&
		k.Index == o.Index &&
		k.T == o.T &&
		k.N == o.N &&
		k.Share.Equal(o.Share)
}

// Compress encodes the share into the compressed layout.
func (k *ThresholdKeyShare) Compress() []byte {
	return compress(k.Index, k.T, k.N, k.GroupID, k.Share.Bytes())
}

// SecretString renders "<curve>/<base58 master key>/<base58 compressed share>".
func (k *ThresholdKeyShare) SecretString() string {
	return strings.Join([]string{
		string(k.Curve),
		base58.Encode(k.MasterPublicKey),
		base58.Encode(k.Compress()),
	}, "/")
}

// FromSecretString parses the output of SecretString.
func FromSecretString(s string) (*ThresholdKeyShare, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "secret string has %d segments", len(parts))
	}
	name, ok := curveTags[parts[0]]
	if !ok {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "unsupported curve tag %q", parts[0])
	}
	curve, err := curves.ForName(name)
	if err != nil {
		return nil, err
	}
	master := base58.Decode(parts[1])
	if err := checkMaster(curve, master); err != nil {
		return nil, errors.WithMessage(err, "master public key segment")
	}
	k := &ThresholdKeyShare{Curve: name, MasterPublicKey: master}
	if err := k.extract(curve, base58.Decode(parts[2])); err != nil {
		return nil, err
	}
	return k, nil
}

// Extract decodes a compressed share for the given group.
func Extract(curveName tss.CurveName, master, compressed []byte) (*ThresholdKeyShare, error) {
	curve, err := curves.ForName(curveName)
	if err != nil {
		return nil, err
	}
	if err := checkMaster(curve, master); err != nil {
		return nil, errors.WithMessage(err, "master public key")
	}
	k := &ThresholdKeyShare{Curve: curveName, MasterPublicKey: append([]byte(nil), master...)}
	if err := k.extract(curve, compressed); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *ThresholdKeyShare) extract(curve curves.Curve, compressed []byte) error {
	index, t, n, gid, raw, err := splitCompressed(compressed)
	if err != nil {
		return err
	}
	if index == 0 || t == 0 || t > n {
		return errors.Wrapf(tss.ErrInvalidFormat, "share parameters index=%d t=%d n=%d", index, t, n)
	}
	share, err := curve.ScalarFromBytes(raw)
	if err != nil {
		return errors.Wrap(err, "share value")
	}
	k.Index, k.T, k.N, k.GroupID, k.Share = index, t, n, gid, share
	return nil
}

// Proactivate adds a zero-share delivered in the compressed layout
// (index | t | n | groupId | zero) and moves the share to the carried
// parameters. The index must be this share's index. Nothing changes on error.
func (k *ThresholdKeyShare) Proactivate(compressed []byte) error {
	curve, err := k.CurveImpl()
	if err != nil {
		return err
	}
	index, t, n, gid, raw, err := splitCompressed(compressed)
	if err != nil {
		return err
	}
	if index != k.Index {
		return errors.Wrapf(tss.ErrInvalidFormat, "zero-share for index %d applied to index %d", index, k.Index)
	}
	delta, err := curve.ScalarFromBytes(raw)
	if err != nil {
		return errors.Wrap(err, "zero-share value")
	}
	return k.ApplyZeroShare(delta, t, n, gid)
}

// ApplyZeroShare is the typed form of Proactivate.
func (k *ThresholdKeyShare) ApplyZeroShare(delta curves.Scalar, t, n uint64, gid tss.GroupID) error {
	if t == 0 || t > n {
		return errors.Wrapf(tss.ErrInvalidFormat, "threshold %d of %d", t, n)
	}
	k.Share = k.Share.Add(delta)
	k.T, k.N, k.GroupID = t, n, gid
	return nil
}

// CompressZeroShare builds the input of Proactivate.
func CompressZeroShare(index, t, n uint64, gid tss.GroupID, delta curves.Scalar) []byte {
	return compress(index, t, n, gid, delta.Bytes())
}

func compress(index, t, n uint64, gid tss.GroupID, value []byte) []byte {
	out := make([]byte, CompressedSize)
	binary.LittleEndian.PutUint64(out[0:8], index)
	binary.LittleEndian.PutUint64(out[8:16], t)
	binary.LittleEndian.PutUint64(out[16:24], n)
	copy(out[24:32], gid[:])
	copy(out[32:64], value)
	return out
}

func splitCompressed(b []byte) (index, t, n uint64, gid tss.GroupID, value []byte, err error) {
	if len(b) != CompressedSize {
		err = errors.Wrapf(tss.ErrInvalidFormat, "compressed share has %d bytes", len(b))
		return
	}
	index = binary.LittleEndian.Uint64(b[0:8])
	t = binary.LittleEndian.Uint64(b[8:16])
	n = binary.LittleEndian.Uint64(b[16:24])
	copy(gid[:], b[24:32])
	value = b[32:64]
	return
}

func checkMaster(curve curves.Curve, master []byte) error {
	if len(master) != curve.PointSize() {
		return errors.Wrapf(tss.ErrInvalidFormat, "%d bytes", len(master))
	}
	p, err := curve.PointFromBytes(master)
	if err != nil {
		return err
	}
	return curves.ValidatePublicKey(p)
}
