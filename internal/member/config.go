package member

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

const defaultPageSize = 500

// Config holds the per-device settings of a member engine.
type Config struct {
	// LayoutVersion is the transaction buffer layout agreed with the
	// coordinator. Buffers of any other width are rejected.
	LayoutVersion uint8
	// PageSize bounds each approved-transaction request during sync.
	PageSize int
	Rand     io.Reader
}

func DefaultConfig() Config {
	return Config{
		LayoutVersion: txcodec.Version1,
		PageSize:      defaultPageSize,
		Rand:          rand.Reader,
	}
}

func (c Config) Validate() error {
	var result *multierror.Error
	if c.LayoutVersion == 0 {
		result = multierror.Append(result, errors.New("layout version must be set"))
	}
	if c.PageSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("page size %d", c.PageSize))
	}
	if c.Rand == nil {
		result = multierror.Append(result, errors.New("missing randomness source"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return errors.Wrap(tss.ErrInvalidParameters, err.Error())
	}
	return nil
}
