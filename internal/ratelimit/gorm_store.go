package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-tracker/internal/database/models"
	"gorm.io/gorm"
)

// GormStore persists counters in the shared rate_limit_counters table. Every
// state change is a single guarded UPDATE or a unique-keyed INSERT, so two
// requests racing on the same key can never both read a stale count and
// under-count: the statement that loses the race updates zero rows and the
// loop re-evaluates.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

const takeMaxAttempts = 5

func (s *GormStore) Take(ctx context.Context, key string, limit Limit) (Result, error) {
	nowMs := s.now().UnixMilli()
	windowMs := limit.Window.Milliseconds()
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < takeMaxAttempts; attempt++ {
		// Same window, under the limit: count one more request.
		res := db.Model(&models.RateLimitCounter{}).
			Where("key = ? AND count < ? AND ? - last_request <= ?", key, limit.Max, nowMs, windowMs).
			Updates(map[string]interface{}{
				"count":        gorm.Expr("count + 1"),
				"last_request": nowMs,
			})
		if res.Error != nil {
			return Result{}, res.Error
		}
		if res.RowsAffected == 1 {
			return s.allowed(ctx, key, limit, nowMs)
		}

		// Window elapsed: start a fresh one.
		res = db.Model(&models.RateLimitCounter{}).
			Where("key = ? AND ? - last_request > ?", key, nowMs, windowMs).
			Updates(map[string]interface{}{
				"count":        1,
				"last_request": nowMs,
			})
		if res.Error != nil {
			return Result{}, res.Error
		}
		if res.RowsAffected == 1 {
			return Result{
				Allowed:   true,
				Limit:     limit.Max,
				Remaining: limit.Max - 1,
				ResetAt:   time.UnixMilli(nowMs + windowMs),
			}, nil
		}

		// Neither guard matched: the row is missing, at the limit, or a
		// concurrent request changed it between statements.
		var counter models.RateLimitCounter
		err := db.Where("key = ?", key).First(&counter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			counter = models.RateLimitCounter{
				ID:          uuid.New(),
				Key:         key,
				Count:       1,
				LastRequest: nowMs,
			}
			if insertErr := db.Create(&counter).Error; insertErr != nil {
				if isDuplicateKey(insertErr) {
					continue // lost the insert race, re-evaluate
				}
				return Result{}, insertErr
			}
			return Result{
				Allowed:   true,
				Limit:     limit.Max,
				Remaining: limit.Max - 1,
				ResetAt:   time.UnixMilli(nowMs + windowMs),
			}, nil
		}
		if err != nil {
			return Result{}, err
		}

		if counter.Count >= limit.Max && nowMs-counter.LastRequest <= windowMs {
			return Result{
				Allowed:   false,
				Limit:     limit.Max,
				Remaining: 0,
				ResetAt:   time.UnixMilli(counter.LastRequest + windowMs),
			}, nil
		}
		// State moved under us; try again.
	}

	return Result{}, fmt.Errorf("rate limit key %q: too much contention", key)
}

func (s *GormStore) allowed(ctx context.Context, key string, limit Limit, nowMs int64) (Result, error) {
	var counter models.RateLimitCounter
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&counter).Error; err != nil {
		return Result{}, err
	}
	remaining := limit.Max - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(counter.LastRequest + limit.Window.Milliseconds()),
	}, nil
}

// Prune deletes counters idle since before the horizon. Counters are
// ephemeral; this only bounds table growth.
func (s *GormStore) Prune(ctx context.Context, horizon time.Duration) (int64, error) {
	cutoff := s.now().Add(-horizon).UnixMilli()
	res := s.db.WithContext(ctx).
		Where("last_request < ?", cutoff).
		Delete(&models.RateLimitCounter{})
	return res.RowsAffected, res.Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
