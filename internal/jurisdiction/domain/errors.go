package domain

import "errors"

var (
	ErrJurisdictionNotFound = errors.New("jurisdiction_not_found")
	ErrInvalidPostalCode    = errors.New("invalid_postal_code")
	ErrInvalidState         = errors.New("invalid_state")
	ErrInvalidEffectiveDate = errors.New("invalid_effective_date")
	ErrNoStateAverageRate   = errors.New("no_state_average_rate")
)
