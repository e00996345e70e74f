package service

import "errors"

// Business errors surfaced to callers. Handlers translate these into
// fixed user-visible messages; anything else is a persistence failure.
var (
	ErrInvalidPoints      = errors.New("points must be greater than zero")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrRewardUnavailable  = errors.New("reward is not available")
	ErrOutOfStock         = errors.New("reward is out of stock")
	ErrVoucherNotActive   = errors.New("voucher is not active")
	ErrVoucherExpired     = errors.New("voucher has expired")
	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrHasDependents      = errors.New("record has dependent rows")
	ErrInvalidPlatform    = errors.New("unsupported share platform")
)
