package reshare

import (
	"io"

	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// Proposal describes a reconfiguration to deal.
type Proposal struct {
	Type    txcodec.Type
	Group   tss.GroupDescriptor
	Members []tss.Member

	// Joining is the identity key of the member an nExtension adds.
	Joining []byte
	// Leaving is the index of the member an nReduction removes.
	Leaving uint64
	// T is the target threshold of a tExtension or tReduction.
	T uint64
}

// Options configures a Resharer.
type Options struct {
	Layout txcodec.Layout
	// PageSize bounds each ApprovedTransactions request during sync.
	PageSize int
	Rand     io.Reader
}

// transition is the parameter change a transaction type implies.
type transition struct {
	t, n       uint64
	recipients []tss.Member
	// blindingDegree is the degree of the masking polynomial for types that
	// need commitments, -1 otherwise.
	blindingDegree int
}
