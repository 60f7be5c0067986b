package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinio/crm-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TreatmentRepositoryImpl implements TreatmentRepository interface
type TreatmentRepositoryImpl struct {
	*BaseRepository[models.Treatment, models.TreatmentFilter]
}

// NewTreatmentRepository creates a new treatment repository instance
func NewTreatmentRepository(db *gorm.DB) TreatmentRepository {
	return &TreatmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Treatment, models.TreatmentFilter](db),
	}
}

func (r *TreatmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.TreatmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	return query
}

// ByFilter retrieves treatments matching the provided filter
func (r *TreatmentRepositoryImpl) ByFilter(ctx context.Context, filter models.TreatmentFilter, orderBy string, limit, offset int) ([]*models.Treatment, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Treatment{})
	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "name ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var treatments []*models.Treatment
	err := query.Find(&treatments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find treatments by filter: %w", err)
	}

	return treatments, nil
}

// Count returns the number of treatments matching the provided filter
func (r *TreatmentRepositoryImpl) Count(ctx context.Context, filter models.TreatmentFilter) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Treatment{})
	query = r.applyFilter(query, filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count treatments: %w", err)
	}

	return count, nil
}

// ByName retrieves a treatment by its unique name
func (r *TreatmentRepositoryImpl) ByName(ctx context.Context, name string) (*models.Treatment, error) {
	db := r.getDB(ctx)

	var treatment models.Treatment
	err := db.Where("name = ?", name).Last(&treatment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find treatment by name: %w", err)
	}

	return &treatment, nil
}

// ByIDs retrieves treatments for the given set of primary keys
func (r *TreatmentRepositoryImpl) ByIDs(ctx context.Context, ids []uint) ([]*models.Treatment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	db := r.getDB(ctx)

	var treatments []*models.Treatment
	err := db.Where("id IN ?", ids).Find(&treatments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find treatments by IDs: %w", err)
	}

	return treatments, nil
}

// EnsureSeeded inserts the catalogue names that do not exist yet
func (r *TreatmentRepositoryImpl) EnsureSeeded(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	treatments := make([]*models.Treatment, 0, len(names))
	for _, name := range names {
		treatments = append(treatments, &models.Treatment{Name: name})
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&treatments).Error
	if err != nil {
		return fmt.Errorf("failed to seed treatments: %w", err)
	}

	return nil
}
