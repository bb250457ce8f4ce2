package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type setting struct {
	StoreID   int64     `gorm:"column:store_id;primaryKey;autoIncrement:false"`
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (setting) TableName() string { return "settings" }

// SettingsRepository is the per-store key/value configuration table.
// Rows with store_id 0 are global defaults.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{
		db: db,
	}
}

// Load merges global rows with the store's own rows; store rows win.
func (r *SettingsRepository) Load(ctx context.Context, storeID int64) (domain.Settings, error) {
	var rows []setting
	err := r.db.WithContext(ctx).
		Where("store_id IN ?", []int64{domain.GlobalStoreID, storeID}).
		Order("store_id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return mergeSettings(rows), nil
}

// mergeSettings applies rows in order. Blank values are skipped so an empty
// store row falls back to the global value instead of masking it.
func mergeSettings(rows []setting) domain.Settings {
	out := make(domain.Settings, len(rows))
	for _, s := range rows {
		if strings.TrimSpace(s.Value) == "" {
			continue
		}
		out[s.Key] = s.Value
	}
	return out
}

func (r *SettingsRepository) Set(ctx context.Context, storeID int64, key, value string) error {
	row := setting{
		StoreID:   storeID,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
