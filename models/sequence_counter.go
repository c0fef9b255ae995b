package models

import (
	"time"
)

// TaskIDCounter is the name of the singleton counter row that mints
// task identifiers.
const TaskIDCounter = "task_id"

// SequenceCounter is a named monotonic counter backed by a single row.
// Allocation reads and bumps LastValue under a row lock so concurrent
// writers observe a strict, gap-free sequence.
type SequenceCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for the SequenceCounter model
func (SequenceCounter) TableName() string {
	return "sequence_counters"
}
