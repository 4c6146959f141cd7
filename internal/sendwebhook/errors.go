package sendwebhook

import "errors"

var (
	// ErrInvalidConfig is returned for unusable run settings.
	ErrInvalidConfig = errors.New("invalid load configuration")

	// ErrUnhealthy is returned when the service health check fails.
	ErrUnhealthy = errors.New("service is not healthy")
)
