package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/repository"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

const dashboardCacheKey = "am:dashboard:summary"

type dashboardRepository interface {
	CountByKind(ctx context.Context) ([]repository.KindCount, error)
	CountAssetsByStatus(ctx context.Context) ([]repository.StatusGroup, error)
	CountAssetsByIssued(ctx context.Context) ([]repository.IssuedGroup, error)
	CountAssetsByCategory(ctx context.Context) ([]repository.CategoryGroup, error)
	DistinctMetaValues(ctx context.Context, kind models.RecordKind, metaKey string) ([]string, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates asset counts for the overview screen,
// applying the labeling rules for unassigned and unknown buckets.
type DashboardService struct {
	repo     dashboardRepository
	users    userResolver
	cache    summaryCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo dashboardRepository, users userResolver, cache summaryCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, users: users, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Summary returns the aggregate view, served from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	if s.cache != nil {
		var cached models.DashboardSummary
		if err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary, called after writes.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// Brands lists the distinct asset brand values for filter dropdowns.
func (s *DashboardService) Brands(ctx context.Context) ([]string, error) {
	brands, err := s.repo.DistinctMetaValues(ctx, models.KindAsset, "brand")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list brands")
	}
	return brands, nil
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{}

	kinds, err := s.repo.CountByKind(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count records")
	}
	for _, kc := range kinds {
		switch kc.Kind {
		case models.KindAsset:
			summary.TotalAssets = kc.Count
		case models.KindRepair:
			summary.TotalRepairs = kc.Count
		}
	}

	if summary.ByStatus, err = s.byStatus(ctx); err != nil {
		return nil, err
	}
	if summary.ByUser, err = s.byUser(ctx); err != nil {
		return nil, err
	}
	if summary.ByCategory, err = s.byCategory(ctx); err != nil {
		return nil, err
	}
	return summary, nil
}

// byStatus reports every defined status, zero counts included, with
// unrecognized values pooled under "Unknown".
func (s *DashboardService) byStatus(ctx context.Context) ([]models.StatusCount, error) {
	groups, err := s.repo.CountAssetsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assets by status")
	}
	counts := map[string]int{}
	unknown := 0
	for _, g := range groups {
		if models.ValidAssetStatus(g.Status) {
			counts[g.Status] += g.Count
		} else {
			unknown += g.Count
		}
	}
	out := make([]models.StatusCount, 0, len(models.AssetStatuses)+1)
	for _, st := range models.AssetStatuses {
		out = append(out, models.StatusCount{Status: string(st), Count: counts[string(st)]})
	}
	if unknown > 0 {
		out = append(out, models.StatusCount{Status: "Unknown", Count: unknown})
	}
	return out, nil
}

// byUser labels issued-to buckets: assets with no holder fall under
// "Unassigned", unless their status says Assigned, which means the
// holder is missing and the asset needs attention.
func (s *DashboardService) byUser(ctx context.Context) ([]models.UserCount, error) {
	groups, err := s.repo.CountAssetsByIssued(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assets by user")
	}
	counts := map[string]int{}
	for _, g := range groups {
		label, labelErr := s.issuedLabel(ctx, g)
		if labelErr != nil {
			return nil, labelErr
		}
		counts[label] += g.Count
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	out := make([]models.UserCount, 0, len(labels))
	for _, label := range labels {
		out = append(out, models.UserCount{Label: label, Count: counts[label]})
	}
	return out, nil
}

func (s *DashboardService) issuedLabel(ctx context.Context, g repository.IssuedGroup) (string, error) {
	id := parseRefID(g.IssuedTo)
	if id <= 0 {
		if g.Status == string(models.StatusAssigned) {
			return "Needs User Assignment", nil
		}
		return "Unassigned", nil
	}
	name, ok, err := s.users.DisplayName(ctx, id)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve asset holder")
	}
	if !ok {
		return fmt.Sprintf("Unknown User (ID: %d)", id), nil
	}
	return name, nil
}

func (s *DashboardService) byCategory(ctx context.Context) ([]models.CategoryCount, error) {
	groups, err := s.repo.CountAssetsByCategory(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assets by category")
	}
	out := make([]models.CategoryCount, 0, len(groups))
	for _, g := range groups {
		name := g.Category
		if name == "" {
			name = "Uncategorized"
		}
		out = append(out, models.CategoryCount{Category: name, Count: g.Count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}
