package tss

import (
	"errors"
	"fmt"
)

// Error taxonomy of the engine. Callers match with errors.Is; structured
// errors below unwrap to one of these sentinels.
var (
	// ErrInvalidFormat is returned for malformed secret strings, buffers and payloads.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrDecryptionFailed is returned when an envelope cannot be opened by the given key.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrUnknownTransactionType is returned for an unrecognized selector.
	// The transaction must be skipped, never guessed.
	ErrUnknownTransactionType = errors.New("unknown transaction type")
	// ErrInsufficientSignatures is retryable: wait for more participants.
	ErrInsufficientSignatures = errors.New("insufficient signatures")
	// ErrAggregationInvalid is fatal for the session and must not be retried
	// with the same input set.
	ErrAggregationInvalid = errors.New("aggregated signature is invalid")
	// ErrCorruptedChain means the local group id cannot be linked to the
	// approved transaction chain.
	ErrCorruptedChain = errors.New("corrupted chain data")
	// ErrReshareFailed is fatal to a sync attempt. Retrying the whole sync is safe.
	ErrReshareFailed = errors.New("reshare failed")
	// ErrStaleSession means a signing session was dealt for a group id other
	// than the member's. Its partial could never aggregate.
	ErrStaleSession = errors.New("session dealt for another group id")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrNotMember         = errors.New("not a member of the group")
	ErrSessionClosed     = errors.New("session already finalized")
	ErrNotFound          = errors.New("not found")
)

// InsufficientSignaturesError reports a short partial-signature set.
type InsufficientSignaturesError struct {
	Required uint64
	Got      int
}

func (e *InsufficientSignaturesError) Error() string {
	return fmt.Sprintf("insufficient number of signatures: require %d but got %d", e.Required, e.Got)
}

func (e *InsufficientSignaturesError) Is(target error) bool {
	return target == ErrInsufficientSignatures
}

// ReshareFailedError wraps the failure that aborted a sync at a given transaction.
type ReshareFailedError struct {
	TransactionID GroupID
	Err           error
}

func (e *ReshareFailedError) Error() string {
	return fmt.Sprintf("reshare failed at transaction %s: %v", e.TransactionID, e.Err)
}

func (e *ReshareFailedError) Is(target error) bool {
	return target == ErrReshareFailed
}

func (e *ReshareFailedError) Unwrap() error {
	return e.Err
}

// Blame represents an error caused by a specific member.
// It lets the caller identify the member whose contribution was unusable.
type Blame struct {
	Member uint64
	Reason string
	Err    error
}

func (b *Blame) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("blame member %d: %s: %v", b.Member, b.Reason, b.Err)
	}
	return fmt.Sprintf("blame member %d: %s", b.Member, b.Reason)
}

func (b *Blame) Unwrap() error {
	return b.Err
}

// NewBlame creates a new Blame error.
func NewBlame(member uint64, reason string, err error) *Blame {
	return &Blame{
		Member: member,
		Reason: reason,
		Err:    err,
	}
}
