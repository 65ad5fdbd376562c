package cache

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ContentTTL applies to module, lesson, and template reads.
	ContentTTL = time.Hour
	// ProgressTTL applies to per-user progress reads.
	ProgressTTL = 30 * 24 * time.Hour
)

// Cache keys shared by readers and the writers that must invalidate them.
const (
	KeyModulesList            = "modules:list"
	KeyModulesListWithLessons = "modules:list:lessons"
)

func ModuleKey(id fmt.Stringer) string {
	return "module:" + id.String()
}

func LessonKey(id fmt.Stringer) string {
	return "lesson:" + id.String()
}

func LessonsByModuleKey(moduleID fmt.Stringer) string {
	return "lessons:module:" + moduleID.String()
}

// TemplatesListKey keys the template list for category, or "all" when empty.
func TemplatesListKey(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = "all"
	}
	return "templates:list:" + category
}

func LessonProgressKey(userID, lessonID fmt.Stringer) string {
	return "progress:" + userID.String() + ":lesson:" + lessonID.String()
}

func ModuleProgressKey(userID, moduleID fmt.Stringer) string {
	return "progress:" + userID.String() + ":module:" + moduleID.String()
}

// ModuleWriteKeys lists every key a module write invalidates.
func ModuleWriteKeys(moduleID fmt.Stringer) []string {
	return []string{
		KeyModulesList,
		KeyModulesListWithLessons,
		ModuleKey(moduleID),
		LessonsByModuleKey(moduleID),
	}
}

// LessonWriteKeys lists every key a lesson write invalidates.
func LessonWriteKeys(lessonID, moduleID fmt.Stringer) []string {
	return append([]string{LessonKey(lessonID)}, ModuleWriteKeys(moduleID)...)
}
