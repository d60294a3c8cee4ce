package controller

import "codeberg.org/mutker/amdfanctl/internal/errors"

const (
	ErrNoDevices       = errors.ErrorCode("controller_no_devices")
	ErrInvalidInterval = errors.ErrInvalidInterval
)
