package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// ErrNilACSFatalLogMsg is used if app, cfg or the settings service is nil.
	ErrNilACSFatalLogMsg = "app, cfg or settings service is nil"
)
