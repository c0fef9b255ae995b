package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCounterNotFound is returned when a named counter row does not exist.
// Allocation never creates the row implicitly.
var ErrCounterNotFound = errors.New("sequence counter not found")

// SequenceCounterRepositoryImpl implements SequenceCounterRepository
type SequenceCounterRepositoryImpl struct {
	DB *gorm.DB
}

// NewSequenceCounterRepository creates a new sequence counter repository
func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{DB: db}
}

func (r *SequenceCounterRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// Next bumps the named counter under a row lock and returns the new
// value. It requires the caller to have opened a transaction via
// WithTransaction; the SELECT ... FOR UPDATE serializes concurrent
// allocators so the sequence has no gaps and no duplicates.
func (r *SequenceCounterRepositoryImpl) Next(ctx context.Context, name string) (int64, error) {
	tx, ok := ctx.Value(TxContextKey).(*gorm.DB)
	if !ok || tx == nil {
		return 0, errors.New("counter allocation requires a transaction in context")
	}

	var counter models.SequenceCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCounterNotFound
		}
		return 0, fmt.Errorf("failed to lock counter %s: %w", name, err)
	}

	next := counter.LastValue + 1
	err = tx.Model(&models.SequenceCounter{}).
		Where("name = ?", name).
		Updates(map[string]any{
			"last_value": next,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to bump counter %s: %w", name, err)
	}
	return next, nil
}

// Current returns the counter's last allocated value without bumping it
func (r *SequenceCounterRepositoryImpl) Current(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)
	var counter models.SequenceCounter
	err := db.Where("name = ?", name).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCounterNotFound
		}
		return 0, err
	}
	return counter.LastValue, nil
}

// Seed creates the named counter row at zero if it does not exist yet
func (r *SequenceCounterRepositoryImpl) Seed(ctx context.Context, name string) error {
	db := r.getDB(ctx)
	counter := models.SequenceCounter{Name: name, LastValue: 0}
	err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error
	if err != nil {
		return fmt.Errorf("failed to seed counter %s: %w", name, err)
	}
	return nil
}
