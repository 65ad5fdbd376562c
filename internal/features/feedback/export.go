package feedback

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []interface{}{
	"id",
	"created_at",
	"telegram_id",
	"username",
	"module",
	"lesson",
	"rating",
	"comment",
}

// WriteXLSX renders rows as a single-sheet workbook into w.
func WriteXLSX(w io.Writer, rows []ExportRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("feedback export header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		values := []interface{}{
			row.ID.String(),
			row.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			row.TelegramID,
			row.Username,
			deref(row.ModuleTitle),
			deref(row.LessonTitle),
			row.Rating,
			deref(row.Comment),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("feedback export row %d: %w", i+2, err)
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
