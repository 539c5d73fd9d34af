// Package audit persists append-only records of rebalance events and
// insurance claim settlements.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nexafin/poolrisk/pkg/models"
)

// RebalanceRecord is the persisted form of a RebalanceEvent.
type RebalanceRecord struct {
	ID              string    `gorm:"primaryKey"`
	PoolID          string    `gorm:"index"`
	Timestamp       time.Time `gorm:"index"`
	Reason          string
	Price           string
	VirtualReserveA string
	VirtualReserveB string
}

// ClaimRecord is the persisted form of a claim settlement.
type ClaimRecord struct {
	ID         string    `gorm:"primaryKey"`
	PositionID string    `gorm:"index"`
	Owner      string    `gorm:"index"`
	Requested  string
	Paid       string
	SettledAt  time.Time `gorm:"index"`
}

// Store is the append-only audit journal. Records are never updated or
// deleted.
type Store struct {
	logger *zap.Logger
	db     *gorm.DB
}

// NewStore opens the journal at the given sqlite DSN and migrates the
// schema.
func NewStore(logger *zap.Logger, dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	if err := db.AutoMigrate(&RebalanceRecord{}, &ClaimRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate audit store: %w", err)
	}
	return &Store{logger: logger, db: db}, nil
}

// AppendRebalance persists a rebalance event.
func (s *Store) AppendRebalance(event models.RebalanceEvent) error {
	record := RebalanceRecord{
		ID:              event.ID.String(),
		PoolID:          event.PoolID.String(),
		Timestamp:       event.Timestamp,
		Reason:          event.Reason,
		Price:           event.Price.String(),
		VirtualReserveA: event.VirtualReserveA.String(),
		VirtualReserveB: event.VirtualReserveB.String(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to append rebalance record: %w", err)
	}
	return nil
}

// AppendClaim persists a claim settlement.
func (s *Store) AppendClaim(outcome models.ClaimOutcome) error {
	record := ClaimRecord{
		ID:         uuid.New().String(),
		PositionID: outcome.PositionID.String(),
		Owner:      outcome.Owner,
		Requested:  outcome.Requested.String(),
		Paid:       outcome.Paid.String(),
		SettledAt:  outcome.SettledAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to append claim record: %w", err)
	}
	return nil
}

// RebalancesForPool returns the persisted rebalance history for a pool,
// oldest first.
func (s *Store) RebalancesForPool(poolID uuid.UUID) ([]RebalanceRecord, error) {
	var records []RebalanceRecord
	if err := s.db.Where("pool_id = ?", poolID.String()).Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load rebalance records: %w", err)
	}
	return records, nil
}

// ClaimsForOwner returns the persisted claim history for an account, oldest
// first.
func (s *Store) ClaimsForOwner(owner string) ([]ClaimRecord, error) {
	var records []ClaimRecord
	if err := s.db.Where("owner = ?", owner).Order("settled_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load claim records: %w", err)
	}
	return records, nil
}
