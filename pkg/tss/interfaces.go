package tss

import "context"

// SessionStore is the signing side of the coordinating service.
type SessionStore interface {
	// Propose registers a message for group signing and returns the session id.
	// Proposing the same message twice returns the same session.
	Propose(ctx context.Context, masterKey []byte, message, raw []byte) (string, error)

	// Session returns the current state of a signing session.
	Session(ctx context.Context, id string) (*SigningSession, error)

	// SubmitPartial records a member's partial signature. A second submission
	// by the same member replaces the first.
	SubmitPartial(ctx context.Context, sessionID string, partial PartialSignature) error

	// SubmitSignature records the aggregated signature and closes the session.
	SubmitSignature(ctx context.Context, sessionID string, signature []byte) error
}

// TransactionStore is the reconfiguration side of the coordinating service.
// Groups are addressed by their master public key, which never changes.
type TransactionStore interface {
	Group(ctx context.Context, masterKey []byte) (*GroupDescriptor, error)
	Members(ctx context.Context, masterKey []byte) ([]Member, error)
	Transaction(ctx context.Context, masterKey []byte, id GroupID) (*TransactionRecord, error)

	// ApprovedTransactions pages through executed transactions in creation order.
	ApprovedTransactions(ctx context.Context, masterKey []byte, offset, limit int) ([]TransactionRecord, error)

	Approvals(ctx context.Context, masterKey []byte, id GroupID) ([]Approval, error)
	SubmitApproval(ctx context.Context, masterKey []byte, approval Approval) error

	// Activate stores the member's current share sealed to its own key.
	Activate(ctx context.Context, masterKey []byte, index uint64, share Envelope) error
}

// EventKind classifies coordinator notifications.
type EventKind int

const (
	EventProposal EventKind = iota + 1
	EventPartial
	EventSignature
	EventTransaction
	EventApproval
	EventExecuted
)

func (k EventKind) String() string {
	switch k {
	case EventProposal:
		return "proposal"
	case EventPartial:
		return "partial"
	case EventSignature:
		return "signature"
	case EventTransaction:
		return "transaction"
	case EventApproval:
		return "approval"
	case EventExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Event is a notification about a group.
type Event struct {
	Kind          EventKind
	SessionID     string
	TransactionID GroupID
	Index         uint64
}

// Subscription is an explicit handle on a Watch registration.
type Subscription interface {
	ID() string
	// Close stops delivery. It is safe to call more than once.
	Close() error
}

// Watcher delivers events for one group until the subscription is closed.
type Watcher interface {
	Watch(ctx context.Context, masterKey []byte, handler func(Event)) (Subscription, error)
}

// Collaborator is everything a member engine needs from the coordinating service.
// Implementations serialize transaction approval so that at most one
// reconfiguration is executed per group id, and authenticate submissions.
type Collaborator interface {
	SessionStore
	TransactionStore
	Watcher
}
