package database

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM "modules" WHERE "modules"."id" = $1`, "SELECT", "modules"},
		{`INSERT INTO "lesson_progress" ("id","user_id") VALUES ($1,$2) ON CONFLICT DO UPDATE`, "INSERT", "lesson_progress"},
		{`UPDATE "templates" SET "downloads"=downloads + 1`, "UPDATE", "templates"},
		{`delete from feedback where id = 1`, "DELETE", "feedback"},
		{``, "UNKNOWN", "unknown"},
	}

	for _, tt := range tests {
		op, table := describe(tt.sql)
		if op != tt.operation || table != tt.table {
			t.Errorf("describe(%q) = (%s, %s), want (%s, %s)", tt.sql, op, table, tt.operation, tt.table)
		}
	}
}
