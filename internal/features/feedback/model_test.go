package feedback

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/lesson"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/module"
	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/pkg/pagination"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

type fixture struct {
	db     *gorm.DB
	author user.User
	other  user.User
	admin  user.User
	module module.Module
	lesson lesson.Lesson
	draft  lesson.Lesson
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t, &user.User{}, &module.Module{}, &lesson.Lesson{}, &Feedback{})

	f := fixture{
		db:     db,
		author: user.User{TelegramID: "1", Username: "author", Role: types.RoleUser},
		other:  user.User{TelegramID: "2", Username: "other", Role: types.RoleUser},
		admin:  user.User{TelegramID: "3", Username: "admin", Role: types.RoleAdmin},
	}
	for _, u := range []*user.User{&f.author, &f.other, &f.admin} {
		if err := db.Create(u).Error; err != nil {
			t.Fatal(err)
		}
	}

	var err error
	if f.module, err = module.Create(db, module.CreateInput{Title: "Cards", IsPublished: true}); err != nil {
		t.Fatal(err)
	}
	if f.lesson, err = lesson.Create(db, lesson.CreateInput{ModuleID: f.module.ID, Title: "Photos", IsPublished: true}); err != nil {
		t.Fatal(err)
	}
	if f.draft, err = lesson.Create(db, lesson.CreateInput{ModuleID: f.module.ID, Title: "Draft"}); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()
	tooLong := string(bytes.Repeat([]byte("a"), 2001))

	tests := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{name: "no target", input: CreateInput{UserID: f.author.ID, Rating: 5}, want: ErrTargetRequired},
		{name: "both targets", input: CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, ModuleID: &f.module.ID, Rating: 5}, want: ErrTargetRequired},
		{name: "rating zero", input: CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 0}, want: ErrInvalidRating},
		{name: "rating six", input: CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 6}, want: ErrInvalidRating},
		{name: "long comment", input: CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 4, Comment: &tooLong}, want: ErrCommentTooLong},
		{name: "unknown lesson", input: CreateInput{UserID: f.author.ID, LessonID: &missing, Rating: 4}, want: ErrLessonNotFound},
		{name: "unknown module", input: CreateInput{UserID: f.author.ID, ModuleID: &missing, Rating: 4}, want: ErrModuleNotFound},
		{name: "draft lesson", input: CreateInput{UserID: f.author.ID, LessonID: &f.draft.ID, Rating: 4}, want: ErrLessonNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Create(f.db, tt.input); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	comment := "  useful  "

	item, err := Create(f.db, CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 5, Comment: &comment})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if item.Comment == nil || *item.Comment != "useful" {
		t.Fatalf("comment = %v", item.Comment)
	}

	if _, err := Create(f.db, CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 3}); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("duplicate err = %v", err)
	}

	// Rating the module is a separate target.
	if _, err := Create(f.db, CreateInput{UserID: f.author.ID, ModuleID: &f.module.ID, Rating: 4}); err != nil {
		t.Fatalf("module feedback: %v", err)
	}
	// Another user may rate the same lesson.
	if _, err := Create(f.db, CreateInput{UserID: f.other.ID, LessonID: &f.lesson.ID, Rating: 2}); err != nil {
		t.Fatalf("other user feedback: %v", err)
	}

	average, count, err := AverageRating(f.db, ListFilters{LessonID: &f.lesson.ID})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || average != 3.5 {
		t.Fatalf("average = %v count = %d", average, count)
	}
}

func TestAdminMayRateDraftLesson(t *testing.T) {
	f := newFixture(t)

	if _, err := Create(f.db, CreateInput{UserID: f.admin.ID, LessonID: &f.draft.ID, Rating: 4, IsAdmin: true}); err != nil {
		t.Fatalf("admin feedback on draft: %v", err)
	}
}

func TestDeletePermissions(t *testing.T) {
	f := newFixture(t)

	item, err := Create(f.db, CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 5})
	if err != nil {
		t.Fatal(err)
	}

	if err := Delete(f.db, item.ID, &f.other); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other user delete err = %v", err)
	}
	if err := Delete(f.db, item.ID, &f.admin); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if err := Delete(f.db, item.ID, &f.author); !errors.Is(err, ErrFeedbackNotFound) {
		t.Fatalf("delete after delete err = %v", err)
	}
}

func TestFeedbackFollowsLessonDeletion(t *testing.T) {
	f := newFixture(t)

	if _, err := Create(f.db, CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := Create(f.db, CreateInput{UserID: f.author.ID, ModuleID: &f.module.ID, Rating: 5}); err != nil {
		t.Fatal(err)
	}

	if _, err := lesson.Delete(f.db, f.lesson.ID); err != nil {
		t.Fatal(err)
	}

	_, total, err := List(f.db, ListFilters{}, pagination.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Fatalf("remaining feedback = %d, want 1", total)
	}
}

func TestExportWorkbook(t *testing.T) {
	f := newFixture(t)
	comment := "great"

	if _, err := Create(f.db, CreateInput{UserID: f.author.ID, LessonID: &f.lesson.ID, Rating: 5, Comment: &comment}); err != nil {
		t.Fatal(err)
	}

	rows, err := Export(f.db, ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Username != "author" || rows[0].LessonTitle == nil || *rows[0].LessonTitle != "Photos" {
		t.Fatalf("unexpected export rows %+v", rows)
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rows); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = book.Close() }()

	sheetRows, err := book.GetRows(book.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(sheetRows) != 2 {
		t.Fatalf("sheet rows = %d, want 2", len(sheetRows))
	}
	if sheetRows[0][0] != "id" || sheetRows[1][3] != "author" || sheetRows[1][7] != "great" {
		t.Fatalf("unexpected sheet content %v", sheetRows)
	}
}
