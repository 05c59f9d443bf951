package domain

import "errors"

var (
	ErrUnparsableTimestamp = errors.New("unparsable timestamp")
	ErrPastTrigger         = errors.New("reminder time has already passed")
	ErrPermissionDenied    = errors.New("notifications are not enabled")
	ErrSchedulingFailed    = errors.New("scheduling failed")
	ErrUnknownLeadTime     = errors.New("unknown lead time")
	ErrEventNotFound       = errors.New("event not found")
	ErrNoRegistration      = errors.New("event has no registration start")
)
