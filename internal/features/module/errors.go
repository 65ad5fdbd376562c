package module

import "errors"

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrTitleRequired  = errors.New("module title is required")
	ErrOrderTaken     = errors.New("module order already exists")
	ErrInvalidOrder   = errors.New("module order must be a non-negative integer")
)
