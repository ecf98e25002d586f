// Package domain defines the persistence models for projects, comments,
// uploads, and feedback summaries. These types are mapped with GORM and form
// the core data layer of the feedback hub.
package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Project is a unit of client work for which feedback is collected.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name / Client: required display fields; both are searchable.
//   - Description: optional free text.
//   - DeadlineDate: calendar date in YYYY-MM-DD form.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Project struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	Description  *string   `json:"description"   gorm:"type:text"`
	Client       string    `json:"client"        gorm:"type:varchar(255);not null;index"`
	DeadlineDate string    `json:"deadline_date" gorm:"type:varchar(10);not null"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string { return "projects" }

// Comment is one piece of free-text feedback tied to a project. Comments are
// append-only; nothing in the service mutates them after creation.
//
// Timestamp is the author-supplied, free-form moment the feedback refers to
// (e.g. "2:30 PM"); it is unrelated to CreatedAt.
type Comment struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ProjectID string    `json:"project_id" gorm:"type:char(36);not null;index:idx_project_comments,priority:1"`
	Author    string    `json:"author"     gorm:"type:varchar(255);not null"`
	Comment   string    `json:"comment"    gorm:"type:text;not null"`
	Timestamp *string   `json:"timestamp"  gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_project_comments,priority:2"`

	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// Upload records a file attached to a project. The bytes live in object
// storage; only the public URL and the file extension are kept here.
type Upload struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ProjectID string    `json:"project_id" gorm:"type:char(36);not null;index:idx_project_uploads,priority:1"`
	FileURL   string    `json:"file_url"   gorm:"type:text;not null"`
	FileType  string    `json:"file_type"  gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_project_uploads,priority:2"`

	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Upload.
func (Upload) TableName() string { return "uploads" }

// Summary is a persisted, LLM-derived digest of a project's comments.
// Summaries accumulate: every successful generation inserts a new row and
// existing rows are never updated.
//
// Priority is stored exactly as produced by the model ("high", "medium" and
// "low" are the expected values). CombinedComments is stored as a JSON array.
type Summary struct {
	ID               string    `json:"id"                gorm:"type:char(36);primaryKey"`
	ProjectID        string    `json:"project_id"        gorm:"type:char(36);not null;index:idx_project_summaries,priority:1"`
	Summary          string    `json:"summary"           gorm:"type:text;not null"`
	Priority         string    `json:"priority"          gorm:"type:varchar(32);not null"`
	CombinedComments []string  `json:"combined_comments" gorm:"type:text;serializer:json"`
	CreatedAt        time.Time `json:"created_at"        gorm:"index:idx_project_summaries,priority:2"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// Priority display buckets.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
	PriorityOther  = "other"
)

// PriorityBucket maps a model-produced priority onto one of the four display
// buckets. Matching is case-insensitive and whitespace-tolerant; anything
// unrecognised lands in PriorityOther rather than failing.
func PriorityBucket(priority string) string {
	switch cases.Fold().String(strings.TrimSpace(priority)) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityOther
	}
}

// Bucket returns the display bucket of s.Priority.
func (s Summary) Bucket() string { return PriorityBucket(s.Priority) }
