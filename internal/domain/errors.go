package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrInvalidState          = errors.New("invalid state")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAlreadyClaimed        = errors.New("already claimed")
	ErrAlreadyListed         = errors.New("already listed")
	ErrPriceMismatch         = errors.New("price mismatch")
	ErrLockHeld              = errors.New("lock already held")
)
