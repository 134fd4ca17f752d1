package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrUnsupportedDriver error if config db.driver is unknown.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrUnsupportedCacheBackend error if config cache.backend is unknown.
	ErrUnsupportedCacheBackend = errors.New("unsupported cache backend")

	// ErrCacheBackendNeedsDriver error if a sql cache backend does not match db.driver.
	ErrCacheBackendNeedsDriver = errors.New("sql cache backend must use the configured db driver")
)
