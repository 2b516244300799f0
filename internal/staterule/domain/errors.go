package domain

import "errors"

var (
	ErrUnsupportedState     = errors.New("unsupported_state")
	ErrInvalidStateCode     = errors.New("invalid_state_code")
	ErrInvalidEffectiveDate = errors.New("invalid_effective_date")
	ErrInvalidScheme        = errors.New("invalid_special_scheme")
)
