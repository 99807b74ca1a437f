// Package redis opens go-redis clients for the shared liveness cache.
package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned by Open for a blank REDIS_URL.
	ErrEmptyConnectionURL = errors.New("redis: connection url is empty")
	// ErrFailedToParseURL covers unsupported schemes and malformed URLs.
	ErrFailedToParseURL = errors.New("redis: invalid connection url")
	// ErrConnectionFailed is returned once every PING attempt has failed.
	ErrConnectionFailed = errors.New("redis: server did not answer ping")
	// ErrHealthcheckFailed wraps a failed PING from Healthcheck.
	ErrHealthcheckFailed = errors.New("redis: health check failed")
)
