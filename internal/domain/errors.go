package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyResolved = errors.New("forecast already resolved")
	ErrNoData          = errors.New("no resolved forecasts with usable outcomes")
	ErrLockHeld        = errors.New("lock already held")
)
