package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/pkg/token"
)

// List pagination limits.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// PreviewService handles the preview token lifecycle.
type PreviewService struct {
	store     TokenStore
	resources ResourceRepository
	settings  SettingsProvider
	hasher    *token.Hasher

	cache     ResolutionCache
	cacheTTL  time.Duration
	authz     Authorizer
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time
	baseURL   string
	onExpired ExpiryHook

	locks stripedLock
}

// PreviewOption configures a PreviewService.
type PreviewOption func(*PreviewService)

// WithCache enables the resolution cache.
func WithCache(c ResolutionCache, ttl time.Duration) PreviewOption {
	return func(s *PreviewService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithAuthorizer sets the authorization provider. Without one every
// requester is allowed.
func WithAuthorizer(a Authorizer) PreviewOption {
	return func(s *PreviewService) { s.authz = a }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) PreviewOption {
	return func(s *PreviewService) { s.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PreviewOption {
	return func(s *PreviewService) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) PreviewOption {
	return func(s *PreviewService) { s.now = now }
}

// WithBaseURL sets the base of generated preview URLs.
func WithBaseURL(u string) PreviewOption {
	return func(s *PreviewService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithExpiryHook registers a callback for observed expiries.
func WithExpiryHook(h ExpiryHook) PreviewOption {
	return func(s *PreviewService) { s.onExpired = h }
}

// NewPreviewService creates a new PreviewService.
func NewPreviewService(store TokenStore, resources ResourceRepository, settings SettingsProvider, hasher *token.Hasher, opts ...PreviewOption) *PreviewService {
	s := &PreviewService{
		store:     store,
		resources: resources,
		settings:  settings,
		hasher:    hasher,
		cacheTTL:  DefaultCacheTTL,
		authz:     allowAll{},
		metrics:   nopRecorder{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PreviewURL returns the shareable URL for a raw token.
func (s *PreviewService) PreviewURL(raw string) string {
	return s.baseURL + "/preview/" + raw
}

// ============================================================================
// Issue
// ============================================================================

// IssueRequest contains parameters for issuing a preview token.
type IssueRequest struct {
	ResourceID int64            // Required
	Requester  domain.Principal // Checked by the Authorizer
	TTLHours   *int             // Optional, 0 means never expires
}

// IssueResponse contains the result of issuing a token.
type IssueResponse struct {
	Token    string              // Raw token, returned exactly once
	URL      string              // Shareable preview URL
	Record   *domain.TokenRecord // Persisted metadata
	Replaced int                 // Number of tokens revoked by the reissue
}

// Issue mints a token for a resource, applying the reissue strategy to the
// resource's current valid token.
func (s *PreviewService) Issue(ctx context.Context, req *IssueRequest) (*IssueResponse, error) {
	// 1. Validate arguments
	if req.ResourceID <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("resource_id must be positive")
	}
	if req.TTLHours != nil {
		if err := domain.CheckTTLHours("ttl_hours", *req.TTLHours); err != nil {
			return nil, err
		}
	}

	// 2. Load resource; a missing one is only reported after authorization
	res, err := s.resources.Get(ctx, req.ResourceID)
	if err != nil {
		if !errors.Is(err, domain.ErrResourceNotFound) {
			return nil, asStorageError(err)
		}
		res = nil
	}

	// 3. Authorize
	if err := s.authz.Authorize(ctx, req.Requester, req.ResourceID, res); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, domain.ErrResourceNotFound
	}

	// 4. Check eligibility
	if err := CheckEligible(res); err != nil {
		return nil, err
	}

	st, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, asStorageError(err)
	}

	// 5. Serialize per resource and mint, retrying one lost race
	unlock := s.locks.lock(req.ResourceID)
	defer unlock()

	var resp *IssueResponse
	for attempt := 0; attempt < 2; attempt++ {
		resp, err = s.mint(ctx, req, res, st)
		if !retryableMint(err) {
			break
		}
		s.logger.Warn("reissue conflict, retrying", "resource_id", req.ResourceID, "attempt", attempt+1)
	}
	if err != nil {
		if retryableMint(err) {
			return nil, domain.ErrStorageError.WithCause(err)
		}
		return nil, err
	}

	s.metrics.TokenIssued(st.ReissueStrategy, resp.Replaced)
	s.audit(st, "preview token issued",
		"resource_id", req.ResourceID,
		"token_id", resp.Record.ID,
		"issuer_id", req.Requester.ID,
		"expires_at", resp.Record.ExpiresAt,
		"replaced", resp.Replaced,
	)
	return resp, nil
}

func (s *PreviewService) mint(ctx context.Context, req *IssueRequest, res *domain.Resource, st domain.Settings) (*IssueResponse, error) {
	now := s.now()

	var prev *domain.TokenRecord
	if st.ReissueStrategy == domain.ReissueRefresh && req.TTLHours == nil {
		latest, err := s.store.LatestForResource(ctx, req.ResourceID)
		switch {
		case err == nil:
			prev = latest
		case !errors.Is(err, domain.ErrTokenNotFound):
			return nil, err
		}
	}

	ttl, err := ReissueTTL(req.TTLHours, res, st, prev, now)
	if err != nil {
		return nil, err
	}

	raw, err := token.Generate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	hash := s.hasher.Hash(raw)

	rec, err := domain.NewTokenRecord(req.ResourceID, hash, req.Requester.ID, now, ttl)
	if err != nil {
		return nil, err
	}

	// Revoked tokens must stop resolving before Issue returns, including
	// when the store reports a failure after its write landed.
	revoked, err := s.store.ReplaceValid(ctx, rec, now)
	for _, h := range revoked {
		s.invalidate(ctx, h)
	}
	if err != nil {
		if !retryableMint(err) {
			s.invalidateResource(ctx, req.ResourceID)
		}
		return nil, err
	}
	if st.EnableCaching {
		s.warm(ctx, rec, now)
	}

	return &IssueResponse{
		Token:    raw,
		URL:      s.PreviewURL(raw),
		Record:   rec.Clone(),
		Replaced: len(revoked),
	}, nil
}

func retryableMint(err error) bool {
	return errors.Is(err, domain.ErrReissueConflict) || errors.Is(err, domain.ErrTokenHashConflict)
}

// ============================================================================
// Resolve
// ============================================================================

// Resolution is the outcome of resolving a raw token.
type Resolution struct {
	ResourceID int64         // Set when allowed
	Denial     domain.Denial // Internal reason, never shown to visitors
	Cached     bool          // Served from the resolution cache
}

// Allowed reports whether the token grants access.
func (r *Resolution) Allowed() bool {
	return r.Denial == domain.DenialNone
}

// Err returns the visitor-facing error of a denied resolution, or nil.
func (r *Resolution) Err() error {
	if r.Allowed() {
		return nil
	}
	return domain.ErrPreviewInvalid
}

// Resolve maps a raw token to its resource. Invalid tokens yield a denied
// Resolution, not an error; only store faults return an error.
func (s *PreviewService) Resolve(ctx context.Context, raw string) (*Resolution, error) {
	if !token.ValidateFormat(raw) {
		return s.deny(ctx, domain.DenialMalformed, 0), nil
	}

	st := s.currentSettings(ctx)
	hash := s.hasher.Hash(raw)

	if st.EnableCaching && s.cache != nil {
		id, hit, err := s.cache.Get(ctx, hash)
		if err != nil {
			s.metrics.CacheError("get")
			s.logger.Warn("resolution cache read failed", "error", err)
		}
		s.metrics.CacheLookup(hit)
		if hit {
			return s.allow(ctx, st, id, true), nil
		}
	}

	now := s.now()
	rec, err := s.store.FindValidByHash(ctx, hash, now)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenNotFound) {
			s.logger.Error("token lookup failed", "error", err)
			return nil, asStorageError(err)
		}
		denial, resourceID := s.classify(ctx, hash, now)
		if denial == domain.DenialExpired && s.onExpired != nil {
			s.onExpired(ctx, resourceID)
		}
		return s.deny(ctx, denial, resourceID), nil
	}

	if d := rec.DenialAt(now); d != domain.DenialNone {
		return s.deny(ctx, d, rec.ResourceID), nil
	}

	if st.EnableCaching {
		s.warm(ctx, rec, now)
	}
	return s.allow(ctx, st, rec.ResourceID, false), nil
}

// classify looks up the record in any state to tell not-found, expired and
// revoked apart. Lookup errors degrade to not-found.
func (s *PreviewService) classify(ctx context.Context, hash string, now time.Time) (domain.Denial, int64) {
	rec, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, domain.ErrTokenNotFound) {
			s.logger.Debug("denial classification failed", "error", err)
		}
		return domain.DenialNotFound, 0
	}
	if d := rec.DenialAt(now); d != domain.DenialNone {
		return d, rec.ResourceID
	}
	// Valid by the second read: a replacement landed in between.
	return domain.DenialNotFound, rec.ResourceID
}

func (s *PreviewService) allow(ctx context.Context, st domain.Settings, resourceID int64, cached bool) *Resolution {
	s.metrics.TokenResolved("allowed")
	if st.EnableLogging {
		s.logger.InfoContext(ctx, "preview resolved", "resource_id", resourceID, "cached", cached)
	}
	return &Resolution{ResourceID: resourceID, Cached: cached}
}

func (s *PreviewService) deny(ctx context.Context, d domain.Denial, resourceID int64) *Resolution {
	s.metrics.TokenResolved(d.String())
	if s.currentSettings(ctx).EnableLogging {
		s.logger.InfoContext(ctx, "preview denied", "reason", d.String(), "resource_id", resourceID)
	}
	return &Resolution{Denial: d}
}

// ============================================================================
// Revoke
// ============================================================================

// Revoke revokes by record ID (ptk-...) or by raw token. It is idempotent:
// unknown or already revoked tokens return false without error.
func (s *PreviewService) Revoke(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, domain.ErrMissingArgument.WithDetails("token or id is required")
	}
	if strings.HasPrefix(ref, domain.TokenIDPrefix) {
		return s.RevokeByID(ctx, ref)
	}
	return s.RevokeToken(ctx, ref)
}

// RevokeToken revokes the token identified by its raw value.
func (s *PreviewService) RevokeToken(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, domain.ErrMissingArgument.WithDetails("token is required")
	}
	if !token.ValidateFormat(raw) {
		return false, nil
	}
	hash := s.hasher.Hash(raw)
	rec, changed, err := s.store.RevokeByHash(ctx, hash)
	return s.afterRevoke(ctx, hash, rec, changed, err)
}

// RevokeByID revokes the token record with id.
func (s *PreviewService) RevokeByID(ctx context.Context, id string) (bool, error) {
	if !domain.ValidateTokenID(id) {
		return false, domain.ErrInvalidArgument.WithDetails("malformed token id")
	}
	rec, changed, err := s.store.RevokeByID(ctx, id)
	hash := ""
	if rec != nil {
		hash = rec.TokenHash
	}
	return s.afterRevoke(ctx, hash, rec, changed, err)
}

// RevokeAs revokes a raw token on behalf of a requester, who must be
// allowed to manage the token's resource.
func (s *PreviewService) RevokeAs(ctx context.Context, requester domain.Principal, raw string) (bool, error) {
	if raw == "" {
		return false, domain.ErrMissingArgument.WithDetails("token is required")
	}
	if !token.ValidateFormat(raw) {
		return false, nil
	}
	hash := s.hasher.Hash(raw)
	rec, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return false, nil
		}
		return false, asStorageError(err)
	}
	res, err := s.resources.Get(ctx, rec.ResourceID)
	if err != nil {
		if !errors.Is(err, domain.ErrResourceNotFound) {
			return false, asStorageError(err)
		}
		res = nil
	}
	if err := s.authz.Authorize(ctx, requester, rec.ResourceID, res); err != nil {
		return false, err
	}
	return s.RevokeToken(ctx, raw)
}

// afterRevoke invalidates the cache entry whatever the store returned: a
// failed call may still have committed, and an unchanged record may still
// have a stale entry.
func (s *PreviewService) afterRevoke(ctx context.Context, hash string, rec *domain.TokenRecord, changed bool, err error) (bool, error) {
	if hash != "" {
		s.invalidate(ctx, hash)
	}
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return false, nil
		}
		if rec != nil {
			s.invalidateResource(ctx, rec.ResourceID)
		}
		return false, asStorageError(err)
	}
	if changed {
		s.metrics.TokenRevoked(1)
		s.audit(s.currentSettings(ctx), "preview token revoked",
			"token_id", rec.ID,
			"resource_id", rec.ResourceID,
		)
	}
	return changed, nil
}

// ============================================================================
// Queries
// ============================================================================

// ListResponse is one page of token records.
type ListResponse struct {
	Items    []*domain.TokenRecord
	Total    int
	Page     int
	PageSize int
}

// List returns token records newest first. Pages are 1-indexed. Under
// concurrent inserts adjacent pages may overlap or skip a record.
func (s *PreviewService) List(ctx context.Context, page, pageSize int) (*ListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	items, total, err := s.store.List(ctx, page, pageSize)
	if err != nil {
		return nil, asStorageError(err)
	}
	return &ListResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// LatestForResource returns the newest token record of a resource, or
// domain.ErrTokenNotFound.
func (s *PreviewService) LatestForResource(ctx context.Context, resourceID int64) (*domain.TokenRecord, error) {
	if resourceID <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("resource_id must be positive")
	}
	rec, err := s.store.LatestForResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, err
		}
		return nil, asStorageError(err)
	}
	return rec, nil
}

// ============================================================================
// Resource events
// ============================================================================

// HandleResourceEvent reacts to a resource change. Updates flush cached
// resolutions; deletions cascade to the resource's token records.
func (s *PreviewService) HandleResourceEvent(ctx context.Context, ev domain.ResourceEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	switch ev.Kind {
	case domain.ResourceDeleted:
		hashes, err := s.store.DeleteAllForResource(ctx, ev.ResourceID)
		for _, h := range hashes {
			s.invalidate(ctx, h)
		}
		s.invalidateResource(ctx, ev.ResourceID)
		if err != nil {
			return asStorageError(err)
		}
		s.audit(s.currentSettings(ctx), "preview tokens removed with resource",
			"resource_id", ev.ResourceID,
			"count", len(hashes),
		)
	case domain.ResourceUpdated:
		s.invalidateResource(ctx, ev.ResourceID)
	}
	return nil
}

// ============================================================================
// helpers
// ============================================================================

func (s *PreviewService) currentSettings(ctx context.Context) domain.Settings {
	st, err := s.settings.Settings(ctx)
	if err != nil {
		s.logger.Warn("settings unavailable, using defaults", "error", err)
		return domain.DefaultSettings()
	}
	return st
}

func (s *PreviewService) warm(ctx context.Context, rec *domain.TokenRecord, now time.Time) {
	if s.cache == nil {
		return
	}
	ttl := CacheTTL(rec, now, s.cacheTTL)
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, rec.TokenHash, rec.ResourceID, ttl); err != nil {
		s.metrics.CacheError("set")
		s.logger.Warn("resolution cache write failed", "error", err)
	}
}

// invalidate runs regardless of the caching toggle so that re-enabling the
// cache never serves entries that outlived a revocation.
func (s *PreviewService) invalidate(ctx context.Context, hash string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, hash); err != nil {
		s.metrics.CacheError("invalidate")
		s.logger.Error("resolution cache invalidation failed", "error", err)
	}
}

func (s *PreviewService) invalidateResource(ctx context.Context, resourceID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateResource(ctx, resourceID); err != nil {
		s.metrics.CacheError("invalidate_resource")
		s.logger.Error("resolution cache invalidation failed", "resource_id", resourceID, "error", err)
	}
}

func (s *PreviewService) audit(st domain.Settings, msg string, args ...any) {
	if st.EnableLogging {
		s.logger.Info(msg, args...)
		return
	}
	s.logger.Debug(msg, args...)
}

// asStorageError keeps domain errors and wraps anything else.
func asStorageError(err error) error {
	if domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrStorageError.WithCause(err)
}
