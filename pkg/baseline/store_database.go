package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/ethpandaops/dbbench/pkg/database"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// baselineRecord is the row stored per benchmark.
type baselineRecord struct {
	ID         uint   `gorm:"primaryKey"`
	StorageKey string `gorm:"uniqueIndex;size:255;not null"`
	Name       string `gorm:"size:255"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (baselineRecord) TableName() string {
	return "baselines"
}

// databaseStore keeps baselines in a SQL table through gorm.
type databaseStore struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// Ensure interface compliance.
var _ Store = (*databaseStore)(nil)

// NewDatabaseStore creates a store in the database described by cfg. The
// connection is opened by Start.
func NewDatabaseStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &databaseStore{
		log: log.WithField("component", "baseline-database"),
		cfg: cfg,
	}
}

// NewDatabaseStoreWithDB creates a store on an existing connection.
func NewDatabaseStoreWithDB(log logrus.FieldLogger, db *gorm.DB) Store {
	return &databaseStore{
		log: log.WithField("component", "baseline-database"),
		db:  db,
	}
}

func (s *databaseStore) Type() string {
	return config.StorageDatabase
}

func (s *databaseStore) Start(ctx context.Context) error {
	if s.db == nil {
		db, err := database.Open(s.cfg)
		if err != nil {
			return fmt.Errorf("opening baseline database: %w", err)
		}

		s.db = db
	}

	if err := s.db.WithContext(ctx).AutoMigrate(&baselineRecord{}); err != nil {
		return fmt.Errorf("migrating baseline table: %w", err)
	}

	return nil
}

func (s *databaseStore) Stop() error {
	if s.db == nil || s.cfg == nil {
		return nil
	}

	return database.Close(s.db)
}

func (s *databaseStore) Save(ctx context.Context, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}

	rec := baselineRecord{
		StorageKey: r.Key(),
		Name:       r.BenchmarkName,
		Data:       string(data),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("saving baseline: %w", err)
	}

	s.log.WithField("benchmark", r.BenchmarkName).Info("Saved baseline")

	return nil
}

func (s *databaseStore) Load(ctx context.Context, name string) (*Result, error) {
	var rec baselineRecord

	err := s.db.WithContext(ctx).Where("storage_key = ?", StorageKey(name)).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("loading baseline: %w", err)
	}

	var r Result
	if err := json.Unmarshal([]byte(rec.Data), &r); err != nil {
		return nil, fmt.Errorf("decoding baseline: %w", err)
	}

	return &r, nil
}

func (s *databaseStore) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("storage_key = ?", StorageKey(name)).Delete(&baselineRecord{})
	if res.Error != nil {
		return fmt.Errorf("deleting baseline: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *databaseStore) List(ctx context.Context) ([]Entry, error) {
	var recs []baselineRecord

	if err := s.db.WithContext(ctx).
		Select("storage_key", "updated_at", "data").
		Order("storage_key").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing baselines: %w", err)
	}

	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, Entry{
			Key:       rec.StorageKey,
			UpdatedAt: rec.UpdatedAt.UTC(),
			Size:      int64(len(rec.Data)),
		})
	}

	return entries, nil
}
