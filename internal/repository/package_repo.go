package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
)

type PackageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *PackageRepository) WithTx(tx *gorm.DB) *PackageRepository {
	return &PackageRepository{db: tx}
}

func (r *PackageRepository) Create(ctx context.Context, pkg *model.Package) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

func (r *PackageRepository) GetByID(ctx context.Context, id string) (*model.Package, error) {
	var pkg model.Package
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) ListActive(ctx context.Context) ([]model.Package, error) {
	var packages []model.Package
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_order ASC").
		Find(&packages).Error
	return packages, err
}

func (r *PackageRepository) ListAll(ctx context.Context) ([]model.Package, error) {
	var packages []model.Package
	err := r.db.WithContext(ctx).Order("display_order ASC").Find(&packages).Error
	return packages, err
}

func (r *PackageRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Package{}).Where("id = ?", id).Updates(fields).Error
}

// Deactivate 软删除，返回是否找到记录
func (r *PackageRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Package{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
