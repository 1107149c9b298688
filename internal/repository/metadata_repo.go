package repository

import (
	"context"
	"time"

	"PickSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheMetadataRepository 数据族刷新标记仓储
type CacheMetadataRepository interface {
	UpsertMarker(ctx context.Context, key string, refreshedAt time.Time, detail string) error
	GetMarker(ctx context.Context, key string) (*model.CacheMetadata, error)
	ListMarkers(ctx context.Context) ([]*model.CacheMetadata, error)
}

type cacheMetadataRepository struct {
	db *gorm.DB
}

func NewCacheMetadataRepository(db *gorm.DB) CacheMetadataRepository {
	return &cacheMetadataRepository{db: db}
}

func (r *cacheMetadataRepository) UpsertMarker(ctx context.Context, key string, refreshedAt time.Time, detail string) error {
	marker := &model.CacheMetadata{
		CacheKey:    key,
		LastRefresh: refreshedAt,
		Detail:      detail,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_refresh", "detail"}),
	}).Create(marker).Error
}

func (r *cacheMetadataRepository) GetMarker(ctx context.Context, key string) (*model.CacheMetadata, error) {
	var marker model.CacheMetadata
	if err := r.db.WithContext(ctx).Where("cache_key = ?", key).First(&marker).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &marker, nil
}

func (r *cacheMetadataRepository) ListMarkers(ctx context.Context) ([]*model.CacheMetadata, error) {
	var markers []*model.CacheMetadata
	if err := r.db.WithContext(ctx).Order("cache_key ASC").Find(&markers).Error; err != nil {
		return nil, err
	}
	return markers, nil
}
