// Package db provides database connection, migration and proposal storage.
package db

import (
	"context"
	"fmt"
	stdlog "log"
	"os"

	"gov-monitoring/internal/config"
	"gov-monitoring/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Open opens a database connection using the provided configuration.
// It returns nil, nil when no database is configured.
func Open(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBDialect == "" || cfg.DBDsn == "" {
		return nil, nil
	}

	switch cfg.DBDialect {
	case config.DatabaseSchemePostgres:
		return gorm.Open(postgres.Open(cfg.DBDsn), &gorm.Config{Logger: silentLogger()})
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT: %s", cfg.DBDialect)
	}
}

// silentLogger keeps GORM quiet; query errors are returned and logged by callers.
func silentLogger() logger.Interface {
	return logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             0,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(&models.Proposal{})
}

// Store persists proposals with GORM. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSchema(ctx context.Context) error {
	if err := AutoMigrate(s.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) IsDuplicate(ctx context.Context, network string, id uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("network = ? AND proposal_id = ?", network, id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check duplicate %s#%d: %w", network, id, err)
	}
	return count > 0, nil
}

// Insert adds p. A row that already exists for (network, proposal_id) is left untouched.
func (s *Store) Insert(ctx context.Context, p models.Proposal) error {
	p.ID = 0
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&p).Error
	if err != nil {
		return fmt.Errorf("insert %s#%d: %w", p.Network, p.ProposalID, err)
	}
	return nil
}

// MarkVoted flags an already stored proposal as voted. Unknown proposals are ignored.
func (s *Store) MarkVoted(ctx context.Context, network string, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("network = ? AND proposal_id = ?", network, id).
		Update("voted", true).Error
	if err != nil {
		return fmt.Errorf("mark voted %s#%d: %w", network, id, err)
	}
	return nil
}
