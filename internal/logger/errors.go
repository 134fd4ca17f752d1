package logger

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrAppNameIsEmpty is returned if log.appName is not set.
	ErrAppNameIsEmpty = errors.New("config log.appName can not be empty")

	// ErrServiceNameIsEmpty is returned if log.serviceName is not set.
	ErrServiceNameIsEmpty = errors.New("config log.serviceName can not be empty")

	// ErrLogLevelUnsupported is returned for levels zerolog does not know.
	ErrLogLevelUnsupported = errors.New("log level is not supported")
)

// writeFailed reports events zerolog could not write. The event itself is lost.
func writeFailed(err error) {
	if writeFailures != nil {
		writeFailures.Inc()
	}

	_, _ = fmt.Fprintf(os.Stderr, "quill logger: could not write event: %v\n", err)
}
