package meta

import (
	"time"

	"gorm.io/datatypes"
)

// AssetModel 是 asset.Asset 在关系型数据库中的投影
type AssetModel struct {
	// ID 是主键 (uuid)
	ID string `gorm:"primaryKey;type:varchar(64)"`

	// File 主文件相对存储根的路径
	File string `gorm:"type:varchar(1024);not null"`

	// Variants: 有序数组 [{"name":..,"file":..}]
	Variants datatypes.JSON

	// ImageMeta: EXIF 读出的键值对
	ImageMeta datatypes.JSON

	// Category 用于排除策略
	Category string `gorm:"index;type:varchar(100)"`

	// Revision 是描述符内容的摘要，用于乐观锁 (CAS)
	Revision string `gorm:"type:char(64)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 强制指定表名
func (AssetModel) TableName() string {
	return "assets"
}

// AssetMeta 是每个 Asset 的键值元数据 (版权记录、released 标记等)
type AssetMeta struct {
	AssetID string `gorm:"primaryKey;type:varchar(64)"`
	Key     string `gorm:"column:meta_key;primaryKey;type:varchar(191)"`
	Value   string `gorm:"type:text"`

	UpdatedAt time.Time
}

func (AssetMeta) TableName() string {
	return "asset_meta"
}

// Models 返回需要迁移的全部模型
func Models() []any {
	return []any{&AssetModel{}, &AssetMeta{}}
}
