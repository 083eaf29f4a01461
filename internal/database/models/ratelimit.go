package models

import "github.com/google/uuid"

// RateLimitCounter is a fixed-window request counter. One row per
// (actor, action) key; owned exclusively by the ratelimit package.
type RateLimitCounter struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Key         string    `gorm:"uniqueIndex;not null"`
	Count       int       `gorm:"not null;default:0"`
	LastRequest int64     `gorm:"not null"` // epoch milliseconds
}

func (RateLimitCounter) TableName() string {
	return "rate_limit_counters"
}
