package domain

import "errors"

var (
	ErrInvalidDealership = errors.New("invalid_dealership")
	ErrInvalidLocation   = errors.New("invalid_location")
)
