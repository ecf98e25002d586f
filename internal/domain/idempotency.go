package domain

import "time"

// Idempotency maps a client's Idempotency-Key, scoped to one project, to the
// summary its first request produced. Rows expire at ExpiresAt.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ProjectID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_project_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_project_key,priority:2"`
	SummaryID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"` // HTTP status of the original response
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

func (Idempotency) TableName() string { return "idempotency" }
