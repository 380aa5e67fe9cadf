package contract

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorizedTool   = errors.New("tool not authorized for current step")
	ErrArgumentValidation = errors.New("tool arguments invalid")
)
