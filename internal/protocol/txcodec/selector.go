// Package txcodec maps group-reconfiguration transactions to and from their
// flat byte buffers.
package txcodec

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Type is one of the four reconfiguration operations.
type Type int

const (
	NExtension Type = iota + 1 // add a member
	NReduction                 // remove a member
	TExtension                 // raise the threshold
	TReduction                 // lower the threshold
)

var typeNames = map[Type]string{
	NExtension: "nExtension",
	NReduction: "nReduction",
	TExtension: "tExtension",
	TReduction: "tReduction",
}

var selectors = func() map[Type][8]byte {
	m := make(map[Type][8]byte, len(typeNames))
	for t, name := range typeNames {
		var sel [8]byte
		copy(sel[:], keccak256([]byte(name)))
		m[t] = sel
	}
	return m
}()

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// NeedsCommitment reports whether approvers publish their masked share z = s + r.
func (t Type) NeedsCommitment() bool {
	return t == NExtension || t == TReduction
}

// Types lists the known operations.
func Types() []Type {
	return []Type{NExtension, NReduction, TExtension, TReduction}
}

// Selector is the first 8 bytes of keccak-256 over the type name.
func Selector(t Type) ([8]byte, error) {
	sel, ok := selectors[t]
	if !ok {
		return sel, errors.Wrapf(tss.ErrUnknownTransactionType, "type %d", int(t))
	}
	return sel, nil
}

// Classify reads the selector at offset 0.
func Classify(buf []byte) (Type, error) {
	if len(buf) < 8 {
		return 0, errors.Wrapf(tss.ErrInvalidFormat, "buffer of %d bytes has no selector", len(buf))
	}
	for _, t := range Types() {
		sel := selectors[t]
		if bytes.Equal(buf[:8], sel[:]) {
			return t, nil
		}
	}
	return 0, errors.Wrapf(tss.ErrUnknownTransactionType, "selector %x", buf[:8])
}

// TransactionID is the first 8 bytes of keccak-256 over the whole buffer. It
// becomes the group id once the transaction is executed.
func TransactionID(buf []byte) tss.GroupID {
	var id tss.GroupID
	copy(id[:], keccak256(buf))
	return id
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
