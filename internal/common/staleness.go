// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"time"
)

// StalenessResult contains the result of a cache staleness check.
type StalenessResult struct {
	// IsStale indicates whether the cached data is stale and needs refresh.
	IsStale bool
	// NextCheckTime is when to check again if data is not currently stale.
	NextCheckTime time.Time
	// Reason provides a human-readable explanation for the staleness decision.
	Reason string
}

// CheckCacheStaleness determines whether a cached entry has outlived its TTL.
//
// Parameters:
//   - cachedAt: When the entry was written (zero value means never cached)
//   - ttl: Lifetime of a cache entry; non-positive disables expiry
//   - now: Current time
func CheckCacheStaleness(cachedAt time.Time, ttl time.Duration, now time.Time) StalenessResult {
	if cachedAt.IsZero() {
		return StalenessResult{
			IsStale: true,
			Reason:  "no cached data available",
		}
	}

	if ttl <= 0 {
		return StalenessResult{
			IsStale: false,
			Reason:  "cache expiry disabled",
		}
	}

	expiresAt := cachedAt.Add(ttl)
	if !now.Before(expiresAt) {
		return StalenessResult{
			IsStale: true,
			Reason: fmt.Sprintf(
				"cached data from %s expired at %s",
				cachedAt.Format(time.RFC3339),
				expiresAt.Format(time.RFC3339),
			),
		}
	}

	return StalenessResult{
		IsStale:       false,
		NextCheckTime: expiresAt,
		Reason: fmt.Sprintf(
			"cached data from %s is fresh until %s",
			cachedAt.Format(time.RFC3339),
			expiresAt.Format(time.RFC3339),
		),
	}
}
