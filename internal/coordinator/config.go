package coordinator

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/pkg/tss"
)

const defaultSessionCacheSize = 256

// Config tunes the in-memory coordinator.
type Config struct {
	// SessionCacheSize bounds the number of signing sessions kept. The
	// least recently used session is dropped first.
	SessionCacheSize int
	// LayoutVersion selects the transaction buffer layout of new groups.
	LayoutVersion uint8
	Rand          io.Reader
}

func DefaultConfig() Config {
	return Config{
		SessionCacheSize: defaultSessionCacheSize,
		LayoutVersion:    1,
		Rand:             rand.Reader,
	}
}

func (c Config) Validate() error {
	var result *multierror.Error
	if c.SessionCacheSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("session cache size %d", c.SessionCacheSize))
	}
	if c.LayoutVersion == 0 {
		result = multierror.Append(result, errors.New("layout version must be set"))
	}
	if c.Rand == nil {
		result = multierror.Append(result, errors.New("missing randomness source"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(tss.ErrInvalidParameters, err.Error())
	}
	return nil
}
