package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinio/crm-api/models"
	"gorm.io/gorm"
)

// OperatorRepositoryImpl implements OperatorRepository interface
type OperatorRepositoryImpl struct {
	*BaseRepository[models.Operator, models.OperatorFilter]
}

// NewOperatorRepository creates a new operator repository instance
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &OperatorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Operator, models.OperatorFilter](db),
	}
}

func (r *OperatorRepositoryImpl) applyFilter(query *gorm.DB, filter models.OperatorFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// ByFilter retrieves operators matching the provided filter
func (r *OperatorRepositoryImpl) ByFilter(ctx context.Context, filter models.OperatorFilter, orderBy string, limit, offset int) ([]*models.Operator, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Operator{})
	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var operators []*models.Operator
	err := query.Find(&operators).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find operators by filter: %w", err)
	}

	return operators, nil
}

// Count returns the number of operators matching the provided filter
func (r *OperatorRepositoryImpl) Count(ctx context.Context, filter models.OperatorFilter) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.Operator{})
	query = r.applyFilter(query, filter)

	var count int64
	err := query.Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count operators: %w", err)
	}

	return count, nil
}

// ByEmail retrieves an operator by email address
func (r *OperatorRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Operator, error) {
	db := r.getDB(ctx)

	var operator models.Operator
	err := db.Where("email = ?", email).Last(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find operator by email: %w", err)
	}

	return &operator, nil
}

// UpdateLastLogin records the time of a successful login
func (r *OperatorRepositoryImpl) UpdateLastLogin(ctx context.Context, operatorID uint, at time.Time) error {
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

	err = db.Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Updates(map[string]any{
			"last_login_at": at,
			"updated_at":    time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update operator last login: %w", err)
	}

	return nil
}
