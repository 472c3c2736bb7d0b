package sign

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// BatchSignResult holds the partials of a batch, in the order of the session ids.
// A nil entry means that session failed; see the returned error.
type BatchSignResult struct {
	Partials []*tss.PartialSignature
}

// SignBatch runs the member round for several sessions concurrently.
// Sessions share nothing but the read-only key share.
func (s *Signer) SignBatch(ctx context.Context, share *keyshare.ThresholdKeyShare, sessionIDs []string) (*BatchSignResult, error) {
	if len(sessionIDs) == 0 {
		return nil, errors.Wrap(tss.ErrInvalidParameters, "empty batch")
	}

	res := &BatchSignResult{Partials: make([]*tss.PartialSignature, len(sessionIDs))}
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for i, id := range sessionIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			partial, err := s.Sign(ctx, share, id)
			if err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
				return
			}
			res.Partials[i] = partial
		}(i, id)
	}
	wg.Wait()
	return res, result.ErrorOrNil()
}
