package template

import "errors"

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTitleRequired     = errors.New("title is required")
	ErrCategoryRequired  = errors.New("category is required")
	ErrFileURLRequired   = errors.New("fileUrl is required")
	ErrInvalidPopularity = errors.New("popularity must not be negative")
	ErrPremiumRequired   = errors.New("active subscription required for premium templates")
)
