package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Project{}).TableName():     "projects",
		(Comment{}).TableName():     "comments",
		(Upload{}).TableName():      "uploads",
		(Summary{}).TableName():     "summaries",
		(Idempotency{}).TableName(): "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Project{}, &Comment{}, &Upload{}, &Summary{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Project{}, &Comment{}, &Upload{}, &Summary{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Comment{}, "idx_project_comments") {
		t.Fatalf("expected index idx_project_comments on comments")
	}
	if !m.HasIndex(&Summary{}, "idx_project_summaries") {
		t.Fatalf("expected index idx_project_summaries on summaries")
	}

	now := time.Now().UTC()
	p := &Project{ID: "p1", Name: "Website", Client: "Acme", DeadlineDate: "2026-01-31", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert project: %v", err)
	}
	c := &Comment{ID: "c1", ProjectID: "p1", Author: "Ann", Comment: "Good work", CreatedAt: now}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("insert comment: %v", err)
	}
	u := &Upload{ID: "u1", ProjectID: "p1", FileURL: "http://x/p1/1.png", FileType: "png", CreatedAt: now}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("insert upload: %v", err)
	}

	// FK: a comment for an unknown project is rejected.
	orphan := &Comment{ID: "c2", ProjectID: "missing", Author: "Bo", Comment: "?", CreatedAt: now}
	if err := db.Create(orphan).Error; err == nil {
		t.Fatalf("expected FK violation for orphan comment")
	}

	// CASCADE: deleting the project removes its comments and uploads.
	if err := db.Delete(&Project{}, "id = ?", "p1").Error; err != nil {
		t.Fatalf("delete project: %v", err)
	}
	var cnt int64
	if err := db.Model(&Comment{}).Where("project_id = ?", "p1").Count(&cnt).Error; err != nil {
		t.Fatalf("count comments: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected comments to cascade-delete, got %d", cnt)
	}
	if err := db.Model(&Upload{}).Where("project_id = ?", "p1").Count(&cnt).Error; err != nil {
		t.Fatalf("count uploads: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected uploads to cascade-delete, got %d", cnt)
	}
}

func TestSummary_CombinedCommentsRoundTrip(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Summary{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	s := &Summary{
		ID:               "s-json",
		ProjectID:        "p-any",
		Summary:          "Mixed feedback",
		Priority:         "medium",
		CombinedComments: []string{"Good work", "Too slow"},
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert summary: %v", err)
	}

	var got Summary
	if err := db.First(&got, "id = ?", "s-json").Error; err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if len(got.CombinedComments) != 2 || got.CombinedComments[0] != "Good work" || got.CombinedComments[1] != "Too slow" {
		t.Fatalf("combined_comments not preserved: %#v", got.CombinedComments)
	}
}

func TestPriorityBucket(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"high", PriorityHigh},
		{"HIGH", PriorityHigh},
		{" Medium ", PriorityMedium},
		{"low", PriorityLow},
		{"urgent", PriorityOther},
		{"", PriorityOther},
		{"high/medium/low", PriorityOther},
	}
	for _, tc := range tests {
		if got := PriorityBucket(tc.in); got != tc.want {
			t.Fatalf("PriorityBucket(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
	if (Summary{Priority: "Low"}).Bucket() != PriorityLow {
		t.Fatalf("Summary.Bucket() should delegate to PriorityBucket")
	}
}
