package txcodec

import (
	"encoding/binary"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/crypto/envelope"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

const (
	// HeaderSize covers selector(8) | refGroupId(8) | t(8 LE) | n(8 LE).
	HeaderSize = 32
	// SubjectSize covers index(8 LE) | public key(33). Ed25519 keys are
	// left-padded with one zero byte.
	SubjectSize = 41

	indexSize   = 8
	keySlotSize = SubjectSize - indexSize
)

// Version1 is the only layout currently produced.
const Version1 uint8 = 1

// Layout fixes the slot widths of a transaction buffer. Widths depend on the
// version and the curve, and a buffer is only ever read with the layout it
// was written with.
type Layout struct {
	Version       uint8
	Curve         tss.CurveName
	BlindingSlot  int
	ZeroShareSlot int
}

// LayoutV1 returns the version 1 layout for a curve.
func LayoutV1(curve curves.Curve) Layout {
	overhead := envelope.Overhead(curve)
	return Layout{
		Version:       Version1,
		Curve:         curve.Name(),
		BlindingSlot:  overhead + envelope.BlindingSize(curve.ScalarSize()),
		ZeroShareSlot: overhead + envelope.ZeroShareSize(curve.ScalarSize()),
	}
}

// NewLayout resolves a layout version for a curve.
func NewLayout(version uint8, curve curves.Curve) (Layout, error) {
	switch version {
	case Version1:
		return LayoutV1(curve), nil
	default:
		return Layout{}, errors.Wrapf(tss.ErrInvalidParameters, "unknown transaction layout version %d", version)
	}
}

// BlockSize is the width of one per-member block.
func (l Layout) BlockSize() int {
	return indexSize + l.BlindingSlot + l.ZeroShareSlot
}

// Subject is the member a membership change is about: the joining member of
// an nExtension or the leaving member of an nReduction.
type Subject struct {
	Index     uint64
	PublicKey []byte
}

// Block carries one member's envelopes. Blinding is only present for types
// that need approver commitments.
type Block struct {
	Index     uint64
	Blinding  tss.Envelope
	ZeroShare tss.Envelope
}

// Transaction is a decoded reconfiguration transaction.
type Transaction struct {
	Type       Type
	RefGroupID tss.GroupID
	T          uint64
	N          uint64
	Subject    *Subject
	Blocks     []Block
}

// Block returns the block addressed to index.
func (tx *Transaction) Block(index uint64) (Block, bool) {
	for _, b := range tx.Blocks {
		if b.Index == index {
			return b, true
		}
	}
	return Block{}, false
}

// Indices lists the members that receive a block, in buffer order.
func (tx *Transaction) Indices() []uint64 {
	out := make([]uint64, len(tx.Blocks))
	for i, b := range tx.Blocks {
		out[i] = b.Index
	}
	return out
}

// Encode writes tx in this layout. Blocks are sorted by index.
func (l Layout) Encode(tx *Transaction) ([]byte, error) {
	sel, err := Selector(tx.Type)
	if err != nil {
		return nil, err
	}
	if err := l.validate(tx); err != nil {
		return nil, err
	}

	blocks := append([]Block(nil), tx.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Index < blocks[j].Index })

	buf := make([]byte, HeaderSize+SubjectSize+len(blocks)*l.BlockSize())
	copy(buf[0:8], sel[:])
	copy(buf[8:16], tx.RefGroupID[:])
	binary.LittleEndian.PutUint64(buf[16:24], tx.T)
	binary.LittleEndian.PutUint64(buf[24:32], tx.N)

	if tx.Subject != nil {
		subject := buf[HeaderSize : HeaderSize+SubjectSize]
		binary.LittleEndian.PutUint64(subject[0:indexSize], tx.Subject.Index)
		key := subject[indexSize:]
		copy(key[keySlotSize-len(tx.Subject.PublicKey):], tx.Subject.PublicKey)
	}

	off := HeaderSize + SubjectSize
	for _, b := range blocks {
		binary.LittleEndian.PutUint64(buf[off:off+indexSize], b.Index)
		off += indexSize
		copy(buf[off:off+l.BlindingSlot], b.Blinding)
		off += l.BlindingSlot
		copy(buf[off:off+l.ZeroShareSlot], b.ZeroShare)
		off += l.ZeroShareSlot
	}
	return buf, nil
}

// Decode parses a buffer written with this layout.
func (l Layout) Decode(buf []byte) (*Transaction, error) {
	if len(buf) < HeaderSize+SubjectSize {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "transaction buffer of %d bytes", len(buf))
	}
	typ, err := Classify(buf)
	if err != nil {
		return nil, err
	}
	rest := len(buf) - HeaderSize - SubjectSize
	if rest%l.BlockSize() != 0 {
		return nil, errors.Wrapf(tss.ErrInvalidFormat,
			"%d block bytes is not a multiple of %d (layout v%d)", rest, l.BlockSize(), l.Version)
	}

	tx := &Transaction{
		Type: typ,
		T:    binary.LittleEndian.Uint64(buf[16:24]),
		N:    binary.LittleEndian.Uint64(buf[24:32]),
	}
	copy(tx.RefGroupID[:], buf[8:16])

	subject := buf[HeaderSize : HeaderSize+SubjectSize]
	if !isZero(subject) {
		key := subject[indexSize:]
		if l.Curve == tss.Ed25519 {
			if key[0] != 0 {
				return nil, errors.Wrap(tss.ErrInvalidFormat, "ed25519 subject key padding")
			}
			key = key[1:]
		}
		tx.Subject = &Subject{
			Index:     binary.LittleEndian.Uint64(subject[0:indexSize]),
			PublicKey: append([]byte(nil), key...),
		}
	}

	for off := HeaderSize + SubjectSize; off < len(buf); {
		b := Block{Index: binary.LittleEndian.Uint64(buf[off : off+indexSize])}
		off += indexSize
		b.Blinding = slot(buf[off : off+l.BlindingSlot])
		off += l.BlindingSlot
		b.ZeroShare = slot(buf[off : off+l.ZeroShareSlot])
		off += l.ZeroShareSlot
		tx.Blocks = append(tx.Blocks, b)
	}
	if err := l.validate(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// RefGroupID reads the chain position a buffer starts from without decoding it.
func RefGroupID(buf []byte) (tss.GroupID, error) {
	var ref tss.GroupID
	if len(buf) < HeaderSize {
		return ref, errors.Wrapf(tss.ErrInvalidFormat, "transaction buffer of %d bytes", len(buf))
	}
	copy(ref[:], buf[8:16])
	return ref, nil
}

func (l Layout) validate(tx *Transaction) error {
	var result *multierror.Error
	if tx.T == 0 || tx.T > tx.N {
		result = multierror.Append(result, errors.Errorf("threshold %d of %d", tx.T, tx.N))
	}
	switch tx.Type {
	case NExtension, NReduction:
		if tx.Subject == nil || tx.Subject.Index == 0 {
			result = multierror.Append(result, errors.Errorf("%s without subject", tx.Type))
		}
	default:
		if tx.Subject != nil {
			result = multierror.Append(result, errors.Errorf("%s with subject", tx.Type))
		}
	}
	if tx.Subject != nil && len(tx.Subject.PublicKey) > keySlotSize-l.keyPadding() {
		result = multierror.Append(result, errors.Errorf("subject key of %d bytes", len(tx.Subject.PublicKey)))
	}
	seen := make(map[uint64]struct{}, len(tx.Blocks))
	for _, b := range tx.Blocks {
		if b.Index == 0 {
			result = multierror.Append(result, errors.New("block for index 0"))
		}
		if _, dup := seen[b.Index]; dup {
			result = multierror.Append(result, errors.Errorf("duplicate block for index %d", b.Index))
		}
		seen[b.Index] = struct{}{}
		if len(b.ZeroShare) != l.ZeroShareSlot {
			result = multierror.Append(result, errors.Errorf("index %d: zero-share envelope of %d bytes", b.Index, len(b.ZeroShare)))
		}
		if tx.Type.NeedsCommitment() && len(b.Blinding) != l.BlindingSlot {
			result = multierror.Append(result, errors.Errorf("index %d: blinding envelope of %d bytes", b.Index, len(b.Blinding)))
		}
		if !tx.Type.NeedsCommitment() && len(b.Blinding) != 0 {
			result = multierror.Append(result, errors.Errorf("index %d: unexpected blinding envelope", b.Index))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	return nil
}

func (l Layout) keyPadding() int {
	if l.Curve == tss.Ed25519 {
		return 1
	}
	return 0
}

func slot(b []byte) tss.Envelope {
	if isZero(b) {
		return nil
	}
	return append(tss.Envelope(nil), b...)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
