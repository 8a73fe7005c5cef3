package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/apperr"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PersonalPageRepository interface {
	FindByShortID(ctx context.Context, tx *gorm.DB, shortID string) (*model.PersonalPage, error)
	// CreateIfAbsent inserts page unless one already exists for its short id
	// or order id. created is false when the insert was a duplicate.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, page *model.PersonalPage) (created bool, err error)
}

type personalPageRepoImpl struct {
	db *gorm.DB
}

func NewPersonalPageRepository(db *gorm.DB) PersonalPageRepository {
	return &personalPageRepoImpl{
		db: db,
	}
}

func (r *personalPageRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *personalPageRepoImpl) FindByShortID(ctx context.Context, tx *gorm.DB, shortID string) (*model.PersonalPage, error) {
	var page model.PersonalPage
	err := r.conn(tx).WithContext(ctx).
		Where("short_id = ?", shortID).
		First(&page).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("page %s: %w", shortID, apperr.ErrPageNotFound)
		}
		return nil, storeError("find personal page", err)
	}

	return &page, nil
}

func (r *personalPageRepoImpl) CreateIfAbsent(ctx context.Context, tx *gorm.DB, page *model.PersonalPage) (bool, error) {
	result := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(page)

	if result.Error != nil {
		return false, storeError("create personal page", result.Error)
	}

	return result.RowsAffected == 1, nil
}
