package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"imagevault/pkg/asset"
	"imagevault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAssetNotFound    = errors.New("asset not found")
	ErrAssetExists      = errors.New("asset already exists")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
)

// ReleasedKey 是 ReleaseFlag 在 asset_meta 中的键
const ReleasedKey = "released"

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db       *DB
	excluded map[string]struct{}
}

// NewRepository excludedCategories 中的分类永远不会被状态机处理
func NewRepository(db *DB, excludedCategories ...string) *Repository {
	excluded := make(map[string]struct{}, len(excludedCategories))
	for _, c := range excludedCategories {
		if c = strings.TrimSpace(c); c != "" {
			excluded[c] = struct{}{}
		}
	}
	return &Repository{db: db, excluded: excluded}
}

// -----------------------------------------------------------------------------
// 1. 资源描述符 (Asset Descriptor)
// -----------------------------------------------------------------------------

// CreateAsset 注册一个新的 Asset (由导入流程调用)
func (r *Repository) CreateAsset(ctx context.Context, a *asset.Asset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	model, err := toModel(a)
	if err != nil {
		return err
	}

	if err := r.db.GetConn().WithContext(ctx).Create(model).Error; err != nil {
		//兼容性,处理不同数据库(PG与SQLite)的唯一约束错误
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAssetExists
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}
	a.Revision = model.Revision
	return nil
}

// GetAssetDescriptor 读取描述符，Revision 会被填充
func (r *Repository) GetAssetDescriptor(ctx context.Context, id types.AssetID) (*asset.Asset, error) {
	var model AssetModel
	err := r.db.GetConn().WithContext(ctx).
		Where("id = ?", string(id)).
		First(&model).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&model)
}

// SetAssetDescriptor 原子更新描述符 (CAS - Compare And Swap)
// a.Revision 是读取时的版本。如果数据库里现在的版本不等于它，说明有人抢先改了，更新失败。
// 成功后 a.Revision 更新为新的摘要。
func (r *Repository) SetAssetDescriptor(ctx context.Context, id types.AssetID, a *asset.Asset) error {
	a.ID = id
	if err := a.Validate(); err != nil {
		return err
	}
	model, err := toModel(a)
	if err != nil {
		return err
	}

	query := r.db.GetConn().WithContext(ctx).Model(&AssetModel{}).Where("id = ?", string(id))
	if a.Revision != "" {
		query = query.Where("revision = ?", a.Revision)
	}

	// SQL: UPDATE assets SET ... WHERE id = ? AND revision = ?
	result := query.Updates(map[string]any{
		"file":       model.File,
		"variants":   model.Variants,
		"image_meta": model.ImageMeta,
		"category":   model.Category,
		"revision":   model.Revision,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update asset: %w", result.Error)
	}

	// 关键检查：影响行数为 0，要么不存在，要么 revision 不匹配
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.GetConn().WithContext(ctx).Model(&AssetModel{}).Where("id = ?", string(id)).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrAssetNotFound
		}
		return ErrConcurrentUpdate
	}

	a.Revision = model.Revision
	return nil
}

// ListAssets 按创建时间倒序列出
func (r *Repository) ListAssets(ctx context.Context, limit int) ([]*asset.Asset, error) {
	var models []AssetModel
	q := r.db.GetConn().WithContext(ctx).Order("created_at DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*asset.Asset, 0, len(models))
	for i := range models {
		a, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// 2. 键值元数据 (Copyright / Released)
// -----------------------------------------------------------------------------

func (r *Repository) getMeta(ctx context.Context, id types.AssetID, key string) (string, bool, error) {
	var m AssetMeta
	err := r.db.GetConn().WithContext(ctx).
		Where("asset_id = ? AND meta_key = ?", string(id), key).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return m.Value, true, nil
}

// setMeta 幂等写入 (Upsert)
func (r *Repository) setMeta(ctx context.Context, id types.AssetID, key, value string) error {
	m := AssetMeta{AssetID: string(id), Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset_id"}, {Name: "meta_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

// GetCopyrightRecord 返回 (值, 是否存在)
func (r *Repository) GetCopyrightRecord(ctx context.Context, id types.AssetID, key string) (string, bool, error) {
	return r.getMeta(ctx, id, key)
}

func (r *Repository) SetCopyrightRecord(ctx context.Context, id types.AssetID, key, value string) error {
	return r.setMeta(ctx, id, key, value)
}

// GetReleaseFlag 未写过时返回 FlagUnset
func (r *Repository) GetReleaseFlag(ctx context.Context, id types.AssetID) (types.ReleaseFlag, error) {
	v, ok, err := r.getMeta(ctx, id, ReleasedKey)
	if err != nil {
		return types.FlagUnset, err
	}
	if !ok {
		return types.FlagUnset, nil
	}
	return types.ParseReleaseFlag(v)
}

func (r *Repository) SetReleaseFlag(ctx context.Context, id types.AssetID, flag types.ReleaseFlag) error {
	if flag != types.FlagLocked && flag != types.FlagReleased {
		return fmt.Errorf("cannot persist release flag %s", flag)
	}
	return r.setMeta(ctx, id, ReleasedKey, flag.Value())
}

// IsExcludedCategory 判断 Asset 是否属于被排除的分类
func (r *Repository) IsExcludedCategory(ctx context.Context, id types.AssetID) (bool, error) {
	if len(r.excluded) == 0 {
		return false, nil
	}
	var model AssetModel
	err := r.db.GetConn().WithContext(ctx).
		Select("category").
		Where("id = ?", string(id)).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrAssetNotFound
	}
	if err != nil {
		return false, err
	}
	_, ok := r.excluded[model.Category]
	return ok, nil
}

// -----------------------------------------------------------------------------
// 3. 转换
// -----------------------------------------------------------------------------

func toModel(a *asset.Asset) (*AssetModel, error) {
	variants := a.Variants
	if variants == nil {
		variants = []asset.Variant{}
	}
	variantsJSON, err := json.Marshal(variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}
	metaJSON, err := json.Marshal(a.ImageMeta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image meta: %w", err)
	}
	digest, err := a.Digest()
	if err != nil {
		return nil, err
	}
	return &AssetModel{
		ID:        string(a.ID),
		File:      a.File,
		Variants:  datatypes.JSON(variantsJSON),
		ImageMeta: datatypes.JSON(metaJSON),
		Category:  a.Category,
		Revision:  digest,
	}, nil
}

func fromModel(m *AssetModel) (*asset.Asset, error) {
	a := &asset.Asset{
		ID:       types.AssetID(m.ID),
		File:     m.File,
		Category: m.Category,
		Revision: m.Revision,
	}
	if len(m.Variants) > 0 {
		if err := json.Unmarshal(m.Variants, &a.Variants); err != nil {
			return nil, fmt.Errorf("corrupted variants for asset %s: %w", m.ID, err)
		}
	}
	if len(m.ImageMeta) > 0 && string(m.ImageMeta) != "null" {
		if err := json.Unmarshal(m.ImageMeta, &a.ImageMeta); err != nil {
			return nil, fmt.Errorf("corrupted image meta for asset %s: %w", m.ID, err)
		}
	}
	return a, nil
}
