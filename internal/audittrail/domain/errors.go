package domain

import "errors"

var (
	ErrEntryNotFound        = errors.New("audit_entry_not_found")
	ErrInvalidCalculationID = errors.New("invalid_calculation_id")
	ErrInvalidDealID        = errors.New("invalid_deal_id")
	ErrInvalidDealership    = errors.New("invalid_dealership")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrInvalidTimeRange     = errors.New("invalid_time_range")
)
