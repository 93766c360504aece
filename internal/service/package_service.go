package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/repository"
)

var (
	ErrInvalidPackage = errors.New("one-time packages must grant a positive number of credits")
	ErrPackageInUse   = errors.New("package price cannot change after it has been purchased")
	ErrNothingToApply = errors.New("no fields to update")
)

// PackageService 后台套餐管理
type PackageService struct {
	packageRepo  *repository.PackageRepository
	purchaseRepo *repository.PurchaseRepository
	provider     CheckoutProvider
}

func NewPackageService(
	packageRepo *repository.PackageRepository,
	purchaseRepo *repository.PurchaseRepository,
	provider CheckoutProvider,
) *PackageService {
	return &PackageService{
		packageRepo:  packageRepo,
		purchaseRepo: purchaseRepo,
		provider:     provider,
	}
}

// List 全部套餐，包括已下架的
func (s *PackageService) List(ctx context.Context) ([]dto.AdminPackageInfo, error) {
	packages, err := s.packageRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AdminPackageInfo, 0, len(packages))
	for i := range packages {
		items = append(items, toAdminPackageInfo(&packages[i]))
	}
	return items, nil
}

// Create 创建套餐，未提供 price id 时在 Stripe 上创建产品和价格
func (s *PackageService) Create(ctx context.Context, req *dto.CreatePackageRequest) (*dto.AdminPackageInfo, error) {
	if req.PackageType == model.PackageTypeOneTime && (req.Credits == nil || *req.Credits <= 0) {
		return nil, ErrInvalidPackage
	}

	priceID := req.StripePriceID
	if priceID == "" {
		var err error
		priceID, err = s.provider.CreateProductPrice(ctx, payment.ProductParams{
			Name:        req.Name,
			Description: req.Description,
			PriceGBP:    req.PriceGBP,
			Recurring:   req.PackageType == model.PackageTypeSubscription,
		})
		if err != nil {
			return nil, fmt.Errorf("create stripe price: %w", err)
		}
	}

	pkg := &model.Package{
		Name:          req.Name,
		Description:   req.Description,
		PackageType:   req.PackageType,
		Credits:       req.Credits,
		PriceGBP:      req.PriceGBP,
		StripePriceID: priceID,
		IsActive:      true,
		DisplayOrder:  req.DisplayOrder,
	}
	if err := s.packageRepo.Create(ctx, pkg); err != nil {
		return nil, err
	}

	log.Printf("Package %s (%s) created with price %s", pkg.ID, pkg.Name, priceID)

	info := toAdminPackageInfo(pkg)
	return &info, nil
}

// Update 修改套餐，已有购买记录的套餐不允许改价
func (s *PackageService) Update(ctx context.Context, id string, req *dto.UpdatePackageRequest) (*dto.AdminPackageInfo, error) {
	pkg, err := s.getPackage(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.DisplayOrder != nil {
		fields["display_order"] = *req.DisplayOrder
	}

	if req.PriceGBP != nil && *req.PriceGBP != pkg.PriceGBP {
		count, err := s.purchaseRepo.CountByPackage(ctx, pkg.ID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrPackageInUse
		}

		name := pkg.Name
		if req.Name != nil {
			name = *req.Name
		}
		priceID, err := s.provider.CreateProductPrice(ctx, payment.ProductParams{
			Name:        name,
			Description: pkg.Description,
			PriceGBP:    *req.PriceGBP,
			Recurring:   pkg.PackageType == model.PackageTypeSubscription,
		})
		if err != nil {
			return nil, fmt.Errorf("create stripe price: %w", err)
		}
		fields["price_gbp"] = *req.PriceGBP
		fields["stripe_price_id"] = priceID
	}

	if len(fields) == 0 {
		return nil, ErrNothingToApply
	}

	if err := s.packageRepo.UpdateFields(ctx, pkg.ID, fields); err != nil {
		return nil, err
	}

	updated, err := s.getPackage(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}
	info := toAdminPackageInfo(updated)
	return &info, nil
}

// Deactivate 软删除套餐
func (s *PackageService) Deactivate(ctx context.Context, id string) error {
	ok, err := s.packageRepo.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPackageNotFound
	}
	return nil
}

func (s *PackageService) getPackage(ctx context.Context, id string) (*model.Package, error) {
	pkg, err := s.packageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}
	return pkg, nil
}

func toAdminPackageInfo(pkg *model.Package) dto.AdminPackageInfo {
	return dto.AdminPackageInfo{
		PackageInfo:   toPackageInfo(pkg),
		StripePriceID: pkg.StripePriceID,
		IsActive:      pkg.IsActive,
		CreatedAt:     pkg.CreatedAt,
	}
}
