package service

import (
	"fmt"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// DefaultCacheTTL bounds how long a positive resolution is cached.
const DefaultCacheTTL = time.Hour

// EffectiveTTL resolves the TTL of a new token: the request value when
// given, else the resource override, else the global default.
// A result of 0 means the token never expires. Values above
// domain.MaxTTLHours are rejected.
func EffectiveTTL(requestHours *int, res *domain.Resource, st domain.Settings) (time.Duration, error) {
	if requestHours != nil {
		if err := domain.CheckTTLHours("ttl_hours", *requestHours); err != nil {
			return 0, err
		}
		return hours(*requestHours), nil
	}
	if res != nil && res.PreviewTTLHours != nil && *res.PreviewTTLHours >= 0 {
		if err := domain.CheckTTLHours("preview_ttl_hours", *res.PreviewTTLHours); err != nil {
			return 0, err
		}
		return hours(*res.PreviewTTLHours), nil
	}
	if err := domain.CheckTTLHours("default_ttl_hours", st.DefaultTTLHours); err != nil {
		return 0, err
	}
	return hours(st.DefaultTTLHours), nil
}

// ReissueTTL applies the reissue strategy on top of EffectiveTTL.
// Under refresh, a valid prev without an explicit request TTL passes its
// lifetime on to the new token.
func ReissueTTL(requestHours *int, res *domain.Resource, st domain.Settings, prev *domain.TokenRecord, now time.Time) (time.Duration, error) {
	ttl, err := EffectiveTTL(requestHours, res, st)
	if err != nil {
		return 0, err
	}
	switch st.ReissueStrategy {
	case domain.ReissueReplace, "":
		return ttl, nil
	case domain.ReissueRefresh:
		if requestHours == nil && prev != nil && prev.IsValidAt(now) {
			return prev.Lifetime(), nil
		}
		return ttl, nil
	default:
		return 0, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown reissue strategy %q", st.ReissueStrategy))
	}
}

// CheckEligible rejects resources whose state does not allow previews.
func CheckEligible(res *domain.Resource) error {
	if !res.Previewable() {
		return domain.ErrInvalidState.WithDetails(fmt.Sprintf("state %q", res.State))
	}
	return nil
}

// CacheTTL bounds a cache entry by the token's remaining lifetime.
// It returns 0 when the entry must not be cached.
func CacheTTL(rec *domain.TokenRecord, now time.Time, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	remaining := rec.Remaining(now)
	if remaining < 0 || remaining > max {
		return max
	}
	return remaining
}

func hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}
