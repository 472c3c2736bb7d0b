package envelope

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Kind tags what an envelope carries.
type Kind uint32

const (
	KindShare Kind = iota + 1
	KindBlinding
	KindZeroShare
)

func (k Kind) String() string {
	switch k {
	case KindShare:
		return "share"
	case KindBlinding:
		return "blinding"
	case KindZeroShare:
		return "zero-share"
	default:
		return "unknown"
	}
}

const (
	fieldKind   protowire.Number = 1
	fieldScalar protowire.Number = 2
	fieldT      protowire.Number = 3
	fieldN      protowire.Number = 4
	fieldRef    protowire.Number = 5
	fieldSecret protowire.Number = 6
)

// ZeroShare is a member's share of a zero-sharing plus the parameters it is
// bound to. T and N are the group parameters after the transaction and Ref is
// the group id the transaction starts from.
type ZeroShare struct {
	Value []byte
	T     uint64
	N     uint64
	Ref   tss.GroupID
}

// EncodeShare wraps a serialized key share for onboarding or re-publishing.
func EncodeShare(secret string) []byte {
	b := appendKind(nil, KindShare)
	b = protowire.AppendTag(b, fieldSecret, protowire.BytesType)
	return protowire.AppendString(b, secret)
}

// EncodeBlinding wraps a per-member random scalar.
func EncodeBlinding(r []byte) []byte {
	b := appendKind(nil, KindBlinding)
	return appendScalar(b, r)
}

// EncodeZeroShare wraps a zero-share. Every field is always written so the
// encoded size depends only on the scalar width.
func EncodeZeroShare(z ZeroShare) []byte {
	b := appendKind(nil, KindZeroShare)
	b = appendScalar(b, z.Value)
	b = protowire.AppendTag(b, fieldT, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, z.T)
	b = protowire.AppendTag(b, fieldN, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, z.N)
	b = protowire.AppendTag(b, fieldRef, protowire.BytesType)
	return protowire.AppendBytes(b, z.Ref[:])
}

// DecodeShare returns the secret string of a share payload.
func DecodeShare(b []byte) (string, error) {
	p, err := decode(b, KindShare)
	if err != nil {
		return "", err
	}
	if p.secret == "" {
		return "", errors.Wrap(tss.ErrInvalidFormat, "share payload without secret")
	}
	return p.secret, nil
}

// DecodeBlinding returns the scalar of a blinding payload.
func DecodeBlinding(b []byte) ([]byte, error) {
	p, err := decode(b, KindBlinding)
	if err != nil {
		return nil, err
	}
	if p.scalar == nil {
		return nil, errors.Wrap(tss.ErrInvalidFormat, "blinding payload without scalar")
	}
	return p.scalar, nil
}

func DecodeZeroShare(b []byte) (*ZeroShare, error) {
	p, err := decode(b, KindZeroShare)
	if err != nil {
		return nil, err
	}
	if p.scalar == nil || !p.hasT || !p.hasN || p.ref == nil {
		return nil, errors.Wrap(tss.ErrInvalidFormat, "incomplete zero-share payload")
	}
	z := &ZeroShare{Value: p.scalar, T: p.t, N: p.n}
	copy(z.Ref[:], p.ref)
	return z, nil
}

// BlindingSize and ZeroShareSize are the payload sizes for a scalar width.
func BlindingSize(scalarSize int) int {
	return len(EncodeBlinding(make([]byte, scalarSize)))
}

func ZeroShareSize(scalarSize int) int {
	return len(EncodeZeroShare(ZeroShare{Value: make([]byte, scalarSize)}))
}

type payload struct {
	kind       Kind
	scalar     []byte
	t, n       uint64
	hasT, hasN bool
	ref        []byte
	secret     string
}

func decode(b []byte, want Kind) (*payload, error) {
	p := &payload{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(tss.ErrInvalidFormat, protowire.ParseError(n).Error())
		}
		b = b[n:]
		switch {
		case num == fieldKind && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, errors.Wrap(tss.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			p.kind = Kind(v)
			b = b[n:]
		case num == fieldScalar && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(tss.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			p.scalar = append([]byte(nil), v...)
			b = b[n:]
		case (num == fieldT || num == fieldN) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, errors.Wrap(tss.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			if num == fieldT {
				p.t, p.hasT = v, true
			} else {
				p.n, p.hasN = v, true
			}
			b = b[n:]
		case num == fieldRef && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 || len(v) != len(tss.GroupID{}) {
				return nil, errors.Wrap(tss.ErrInvalidFormat, "group id field")
			}
			p.ref = append([]byte(nil), v...)
			b = b[n:]
		case num == fieldSecret && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, errors.Wrap(tss.ErrInvalidFormat, protowire.ParseError(n).Error())
			}
			p.secret = v
			b = b[n:]
		default:
			return nil, errors.Wrapf(tss.ErrInvalidFormat, "unexpected field %d", num)
		}
	}
	if p.kind != want {
		return nil, errors.Wrapf(tss.ErrInvalidFormat, "expected %s payload, got %s", want, p.kind)
	}
	return p, nil
}

func appendKind(b []byte, k Kind) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, uint32(k))
}

func appendScalar(b, s []byte) []byte {
	b = protowire.AppendTag(b, fieldScalar, protowire.BytesType)
	return protowire.AppendBytes(b, s)
}
