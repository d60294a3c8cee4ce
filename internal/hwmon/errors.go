package hwmon

import "codeberg.org/mutker/amdfanctl/internal/errors"

const (
	// Discovery Errors
	ErrScanFailed         = errors.ErrorCode("hwmon_scan_failed")
	ErrDeviceIncompatible = errors.ErrorCode("hwmon_device_incompatible")

	// Endpoint Errors
	ErrEndpointRead     = errors.ErrorCode("hwmon_endpoint_read_failed")
	ErrEndpointWrite    = errors.ErrorCode("hwmon_endpoint_write_failed")
	ErrPermissionDenied = errors.ErrorCode("hwmon_permission_denied")
	ErrParseValue       = errors.ErrorCode("hwmon_parse_value_failed")
)
