package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
)

// SQLiteAdapter implements ports.Storage using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// BundleModel stores one named model bundle as a JSON blob.
type BundleModel struct {
	Name      string `gorm:"primaryKey"`
	Payload   []byte
	Rows      int
	TrainedAt time.Time
	UpdatedAt time.Time
}

// ObservationModel is an archived observation evicted from the in-memory log.
type ObservationModel struct {
	ID          uint      `gorm:"primaryKey"`
	Timestamp   time.Time `gorm:"index"`
	Kind        string    `gorm:"index"`
	SrcAddr     string    `gorm:"index"`
	DstAddr     string
	Method      string
	CallID      string
	UserAgent   string
	SrcPort     uint16
	DstPort     uint16
	StreamKey   string
	HeaderValid bool
	SSRC        uint32
	PayloadType uint8
	Sequence    uint16
	Suspicious  bool
}

// NewSQLiteAdapter opens the database, enables query tracing and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newAdapter(db)
}

func newAdapter(db *gorm.DB) (*SQLiteAdapter, error) {
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("enable tracing: %w", err)
	}
	if err := db.AutoMigrate(&BundleModel{}, &ObservationModel{}); err != nil {
		return nil, err
	}
	return &SQLiteAdapter{db: db}, nil
}

// SaveBundle upserts the bundle stored under name.
func (a *SQLiteAdapter) SaveBundle(ctx context.Context, name string, bundle domain.ModelBundle) error {
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	model := BundleModel{
		Name:      name,
		Payload:   payload,
		Rows:      bundle.Rows,
		TrainedAt: bundle.TrainedAt,
	}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&model).Error
}

// LoadBundle returns the bundle stored under name or domain.ErrBundleNotFound.
func (a *SQLiteAdapter) LoadBundle(ctx context.Context, name string) (domain.ModelBundle, error) {
	var model BundleModel
	if err := a.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ModelBundle{}, fmt.Errorf("%w: %q", domain.ErrBundleNotFound, name)
		}
		return domain.ModelBundle{}, err
	}

	var bundle domain.ModelBundle
	if err := json.Unmarshal(model.Payload, &bundle); err != nil {
		return domain.ModelBundle{}, fmt.Errorf("decode bundle %q: %w", name, err)
	}
	return bundle, nil
}

// ArchiveObservations appends evicted observations in a single transaction.
func (a *SQLiteAdapter) ArchiveObservations(ctx context.Context, obs []domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	models := make([]ObservationModel, len(obs))
	for i, o := range obs {
		models[i] = toModel(o)
	}
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(models, 100).Error
	})
}

// ArchivedObservations returns archived observations from src (all sources
// when empty) in archive order.
func (a *SQLiteAdapter) ArchivedObservations(ctx context.Context, src string, limit int) ([]domain.Observation, error) {
	query := a.db.WithContext(ctx).Order("id")
	if src != "" {
		query = query.Where("src_addr = ?", src)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []ObservationModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Observation, len(models))
	for i, m := range models {
		out[i] = toDomain(m)
	}
	return out, nil
}

// ArchivedCount returns the number of archived observations.
func (a *SQLiteAdapter) ArchivedCount(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.WithContext(ctx).Model(&ObservationModel{}).Count(&n).Error
	return n, err
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.Storage = (*SQLiteAdapter)(nil)
