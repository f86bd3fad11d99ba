package credstore

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/jwtx"
)

// Credential is an opaque bearer token with a self-describing exp claim.
type Credential string

// Token returns the raw bearer token.
func (c Credential) Token() string { return string(c) }

// String redacts the token so credentials never end up in logs.
func (c Credential) String() string {
	if len(c) <= 8 {
		return "[redacted]"
	}
	return string(c[:8]) + "…[redacted]"
}

// ExpiresAt decodes the exp claim. The signature is not checked.
func (c Credential) ExpiresAt() (time.Time, error) {
	exp, err := jwtx.ExpiresAt(string(c))
	if err != nil {
		return time.Time{}, &DecodeError{Err: err}
	}
	return exp, nil
}

// ExpiresWithin reports whether the credential expires before now+lead. An
// undecodable credential is reported as expiring together with its
// *DecodeError.
func (c Credential) ExpiresWithin(now time.Time, lead time.Duration) (bool, error) {
	exp, err := c.ExpiresAt()
	if err != nil {
		return true, err
	}
	return exp.Sub(now) < lead, nil
}

// DecodeError reports a malformed credential.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("credstore: decode credential: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
