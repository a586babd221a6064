package models

import "errors"

// Domain errors surfaced to the presentation layer.
var (
	ErrNoToolAvailable    = errors.New("no tool available")
	ErrInsufficientTool   = errors.New("insufficient tool count")
	ErrAsteroidDepleted   = errors.New("asteroid depleted")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrToolCoolingDown    = errors.New("tool cooling down")
	ErrBadRequest         = errors.New("bad request")
)

// Error kinds as rendered to the webview.
const (
	ErrorKindNoToolAvailable    = "NoToolAvailable"
	ErrorKindAsteroidDepleted   = "AsteroidDepleted"
	ErrorKindStorageUnavailable = "StorageUnavailable"
	ErrorKindUnknownTool        = "UnknownTool"
	ErrorKindToolCoolingDown    = "ToolCoolingDown"
	ErrorKindBadRequest         = "BadRequest"
)

// ErrorKindOf maps an error to its wire kind. Anything unrecognised is
// reported as a storage fault.
func ErrorKindOf(err error) string {
	switch {
	case errors.Is(err, ErrNoToolAvailable), errors.Is(err, ErrInsufficientTool):
		return ErrorKindNoToolAvailable
	case errors.Is(err, ErrAsteroidDepleted):
		return ErrorKindAsteroidDepleted
	case errors.Is(err, ErrUnknownTool):
		return ErrorKindUnknownTool
	case errors.Is(err, ErrToolCoolingDown):
		return ErrorKindToolCoolingDown
	case errors.Is(err, ErrBadRequest):
		return ErrorKindBadRequest
	default:
		return ErrorKindStorageUnavailable
	}
}
