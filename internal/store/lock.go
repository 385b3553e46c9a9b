package store

import (
	"context"
	"time"

	"github.com/staysignal/backend/internal/models"
)

// TryLock claims (name, key) for owner until now+ttl. A claim whose expiry
// has passed can be taken over. It reports whether the caller holds the lock.
func (s *GormStore) TryLock(ctx context.Context, name, key, owner string, now time.Time, ttl time.Duration) (bool, error) {
	now = now.UTC()
	claim := &models.JobClaim{
		Job:       name,
		Period:    key,
		Holder:    owner,
		ClaimedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := s.db.WithContext(ctx).Create(claim).Error
	if err == nil {
		return true, nil
	}
	if !isDuplicate(err) {
		return false, err
	}

	res := s.db.WithContext(ctx).Model(&models.JobClaim{}).
		Where("job = ? AND period = ? AND expires_at < ?", name, key, now).
		Updates(map[string]interface{}{
			"holder":     owner,
			"claimed_at": now,
			"expires_at": now.Add(ttl),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseExpiredLocks deletes lock rows that expired before cutoff.
func (s *GormStore) ReleaseExpiredLocks(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", cutoff.UTC()).Delete(&models.JobClaim{})
	return res.RowsAffected, res.Error
}
