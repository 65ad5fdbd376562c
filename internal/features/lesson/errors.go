package lesson

import "errors"

var (
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrModuleNotFound   = errors.New("module not found")
	ErrTitleRequired    = errors.New("lesson title is required")
	ErrModuleIDRequired = errors.New("moduleId is required")
	ErrOrderTaken       = errors.New("lesson order already exists in this module")
	ErrInvalidOrder     = errors.New("lesson order must be a non-negative integer")
	ErrInvalidDuration  = errors.New("lesson duration must be a non-negative number of seconds")
)
