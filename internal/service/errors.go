package service

import "errors"

var (
	ErrContestNotFound = errors.New("contest not found")
	ErrInternalServer  = errors.New("internal server error")
	ErrDeliveryFailed  = errors.New("notification delivery failed")
)
