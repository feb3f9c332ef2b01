package config

import "errors"

// ErrInvalidArgument is wrapped by every configuration error: unknown
// standardization tags, malformed hex, out-of-range limits.
var ErrInvalidArgument = errors.New("invalid argument")
