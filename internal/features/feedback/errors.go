package feedback

import "errors"

var (
	ErrFeedbackNotFound  = errors.New("feedback not found")
	ErrTargetRequired    = errors.New("exactly one of lessonId or moduleId is required")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong    = errors.New("comment must be at most 2000 characters")
	ErrLessonNotFound    = errors.New("lesson not found")
	ErrModuleNotFound    = errors.New("module not found")
	ErrDuplicateFeedback = errors.New("feedback already submitted")
	ErrForbidden         = errors.New("not allowed to delete this feedback")
)
